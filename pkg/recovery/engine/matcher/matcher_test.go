package matcher_test

import (
	"testing"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/core/ports"
	"github.com/tigerroll/tidal/pkg/recovery/engine/matcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatcher(fuzzyThreshold float64) matcher.InstanceMatcher {
	cfg := config.NewConfig()
	cfg.Tidal.Matcher.FuzzyThreshold = fuzzyThreshold
	cfg.Tidal.Matcher.EligibleTargetTag = "recovery-target"
	return matcher.NewInstanceMatcher(matcher.MatcherParams{Cfg: cfg})
}

func source(id, name string) ports.Resource {
	return ports.Resource{ID: id, Name: name, State: matcher.SourceStateReplicating}
}

func target(id, name string) ports.Resource {
	return ports.Resource{
		ID:    id,
		Name:  name,
		State: matcher.TargetStateStopped,
		Tags:  map[string]string{"recovery-target": "true"},
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "web-01", matcher.Normalize("  Web-01 "))
	assert.Equal(t, "db primary replica", matcher.Normalize("DB   Primary\tReplica"))
	assert.Equal(t, "", matcher.Normalize("   "))
}

func TestMatch_ExactByNormalizedName(t *testing.T) {
	m := newTestMatcher(0)
	result := m.Match(
		[]ports.Resource{source("src-1", "web-01"), source("src-2", "db-01")},
		[]ports.Resource{target("tgt-1", "  WEB-01 "), target("tgt-2", "db-01")},
	)

	require.Len(t, result.Matched, 2)
	for _, pair := range result.Matched {
		assert.Equal(t, model.MatchMethodExact, pair.MatchMethod)
		assert.Equal(t, 1.0, pair.Confidence)
	}
	assert.Empty(t, result.UnmatchedSources)
	assert.Empty(t, result.UnmatchedTargets)
}

func TestMatch_DuplicateTargetFirstSourceWins(t *testing.T) {
	// Two sources named "web-01" compete for one target; the lower source ID wins
	// and the loser is reported unmatched with a reason.
	m := newTestMatcher(0)
	result := m.Match(
		[]ports.Resource{source("src-2", "web-01"), source("src-1", "web-01")},
		[]ports.Resource{target("tgt-1", "Web-01 ")},
	)

	require.Len(t, result.Matched, 1)
	assert.Equal(t, "src-1", result.Matched[0].SourceID)
	assert.Equal(t, "tgt-1", result.Matched[0].TargetID)
	assert.Equal(t, model.MatchMethodExact, result.Matched[0].MatchMethod)
	assert.Equal(t, 1.0, result.Matched[0].Confidence)

	require.Len(t, result.UnmatchedSources, 1)
	assert.Equal(t, "src-2", result.UnmatchedSources[0].Resource.ID)
	assert.Contains(t, result.UnmatchedSources[0].Reason, "already claimed by source src-1")
}

func TestMatch_FuzzyDisabledByDefault(t *testing.T) {
	m := newTestMatcher(0)
	result := m.Match(
		[]ports.Resource{source("src-1", "web-01")},
		[]ports.Resource{target("tgt-1", "web-1")},
	)

	assert.Empty(t, result.Matched)
	require.Len(t, result.UnmatchedSources, 1)
	assert.Contains(t, result.UnmatchedSources[0].Reason, "no target shares the normalized name")
	assert.Len(t, result.UnmatchedTargets, 1)
}

func TestMatch_FuzzyPassAboveThreshold(t *testing.T) {
	m := newTestMatcher(0.7)
	result := m.Match(
		[]ports.Resource{source("src-1", "web-01")},
		[]ports.Resource{target("tgt-1", "web-1")},
	)

	require.Len(t, result.Matched, 1)
	pair := result.Matched[0]
	assert.Equal(t, model.MatchMethodFuzzy, pair.MatchMethod)
	assert.GreaterOrEqual(t, pair.Confidence, 0.7)
	assert.Less(t, pair.Confidence, 1.0)
}

func TestMatch_FuzzyBelowThresholdStaysUnmatched(t *testing.T) {
	m := newTestMatcher(0.9)
	result := m.Match(
		[]ports.Resource{source("src-1", "web-01")},
		[]ports.Resource{target("tgt-1", "database-primary")},
	)

	assert.Empty(t, result.Matched)
	require.Len(t, result.UnmatchedSources, 1)
	assert.Contains(t, result.UnmatchedSources[0].Reason, "below threshold")
}

func TestMatch_PerWaveThresholdOverride(t *testing.T) {
	m := newTestMatcher(0)
	result := m.MatchWithThreshold(
		[]ports.Resource{source("src-1", "web-01")},
		[]ports.Resource{target("tgt-1", "web-1")},
		0.7,
	)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, model.MatchMethodFuzzy, result.Matched[0].MatchMethod)
}

func TestMatch_FreshResultPerRun(t *testing.T) {
	m := newTestMatcher(0)
	sources := []ports.Resource{source("src-1", "web-01")}
	targets := []ports.Resource{target("tgt-1", "web-01")}

	first := m.Match(sources, targets)
	second := m.Match(sources, targets)
	require.Len(t, second.Matched, 1)
	assert.NotSame(t, first.Matched[0], second.Matched[0])
	assert.Equal(t, *first.Matched[0], *second.Matched[0])
}

func TestValidate_HealthyPair(t *testing.T) {
	m := newTestMatcher(0)
	pair := &model.InstanceMatch{SourceID: "src-1", TargetID: "tgt-1"}

	err := m.Validate(pair, source("src-1", "web-01"), target("tgt-1", "web-01"))
	require.NoError(t, err)
	assert.True(t, pair.Validated)
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	m := newTestMatcher(0)
	pair := &model.InstanceMatch{SourceID: "src-1", TargetID: "tgt-1"}

	badSource := ports.Resource{ID: "src-1", Name: "web-01", State: "stalled"}
	badTarget := ports.Resource{ID: "tgt-1", Name: "web-01", State: "running"}

	err := m.Validate(pair, badSource, badTarget)
	require.Error(t, err)
	assert.False(t, pair.Validated)
	assert.Contains(t, err.Error(), `source src-1 is "stalled"`)
	assert.Contains(t, err.Error(), `target tgt-1 is "running"`)
	assert.Contains(t, err.Error(), `missing the "recovery-target" tag`)
}

func TestValidate_FailedPairStaysVisible(t *testing.T) {
	m := newTestMatcher(0)
	result := m.Match(
		[]ports.Resource{source("src-1", "web-01")},
		[]ports.Resource{{ID: "tgt-1", Name: "web-01", State: "running"}},
	)
	require.Len(t, result.Matched, 1)

	err := m.Validate(result.Matched[0], source("src-1", "web-01"), ports.Resource{ID: "tgt-1", Name: "web-01", State: "running"})
	require.Error(t, err)
	assert.False(t, result.Matched[0].Validated)
	assert.Len(t, result.Matched, 1)
}
