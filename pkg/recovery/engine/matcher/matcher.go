// Package matcher implements the instance-identity matcher. It pairs protected
// source resources with pre-provisioned candidate targets by normalized display name
// and scores each pair with a confidence value. Matching runs are pure with respect
// to durable state: every run produces a fresh result set.
package matcher

import (
	"fmt"
	"sort"
	"strings"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/core/ports"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"github.com/agnivade/levenshtein"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"
)

// Resource lifecycle states the validator recognizes.
const (
	SourceStateReplicating = "replicating"
	TargetStateStopped     = "stopped"
)

// UnmatchedResource is a resource the matcher could not pair, with the reason.
type UnmatchedResource struct {
	Resource ports.Resource
	Reason   string
}

// MatchResult is the full outcome of one matching run.
type MatchResult struct {
	Matched          []*model.InstanceMatch
	UnmatchedSources []UnmatchedResource
	UnmatchedTargets []ports.Resource
}

// InstanceMatcher pairs sources to targets and validates the pairs.
type InstanceMatcher interface {
	// Match pairs sources to targets with the configured fuzzy threshold.
	Match(sources, targets []ports.Resource) *MatchResult

	// MatchWithThreshold is Match with an explicit fuzzy-confidence floor; a
	// threshold of 0 disables the fuzzy pass entirely.
	MatchWithThreshold(sources, targets []ports.Resource, fuzzyThreshold float64) *MatchResult

	// Validate checks the pairing prerequisites on both sides and records the
	// outcome on the pair. A failed validation keeps the pair in the result set
	// with Validated=false; the returned error carries every violated check.
	Validate(pair *model.InstanceMatch, source, target ports.Resource) error
}

type instanceMatcher struct {
	fuzzyThreshold    float64
	eligibleTargetTag string
}

// MatcherParams defines the dependencies for NewInstanceMatcher.
type MatcherParams struct {
	fx.In
	Cfg *config.Config
}

// NewInstanceMatcher creates an InstanceMatcher from the matcher configuration.
func NewInstanceMatcher(p MatcherParams) InstanceMatcher {
	return &instanceMatcher{
		fuzzyThreshold:    p.Cfg.Tidal.Matcher.FuzzyThreshold,
		eligibleTargetTag: p.Cfg.Tidal.Matcher.EligibleTargetTag,
	}
}

// Normalize canonicalizes a display name for comparison: lowercase, trimmed, with
// internal whitespace runs collapsed to a single space.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func (m *instanceMatcher) Match(sources, targets []ports.Resource) *MatchResult {
	return m.MatchWithThreshold(sources, targets, m.fuzzyThreshold)
}

func (m *instanceMatcher) MatchWithThreshold(sources, targets []ports.Resource, fuzzyThreshold float64) *MatchResult {
	const op = "InstanceMatcher.Match"

	// Source-id order makes duplicate-target resolution deterministic: the first
	// source to claim a target wins, later claimants are reported unmatched.
	orderedSources := make([]ports.Resource, len(sources))
	copy(orderedSources, sources)
	sort.Slice(orderedSources, func(i, j int) bool { return orderedSources[i].ID < orderedSources[j].ID })

	orderedTargets := make([]ports.Resource, len(targets))
	copy(orderedTargets, targets)
	sort.Slice(orderedTargets, func(i, j int) bool { return orderedTargets[i].ID < orderedTargets[j].ID })

	result := &MatchResult{}
	claimed := make(map[string]string) // target ID -> claiming source ID

	targetsByName := make(map[string][]ports.Resource)
	for _, t := range orderedTargets {
		name := Normalize(t.Name)
		targetsByName[name] = append(targetsByName[name], t)
	}

	var fuzzyCandidates []ports.Resource

	// First pass: exact normalized-name equality.
	for _, source := range orderedSources {
		target, ok := firstUnclaimed(targetsByName[Normalize(source.Name)], claimed)
		if !ok {
			fuzzyCandidates = append(fuzzyCandidates, source)
			continue
		}
		claimed[target.ID] = source.ID
		result.Matched = append(result.Matched, &model.InstanceMatch{
			SourceID:    source.ID,
			TargetID:    target.ID,
			Confidence:  1.0,
			MatchMethod: model.MatchMethodExact,
		})
	}

	// Second pass: edit-distance similarity over whatever the exact pass left,
	// gated by the confidence floor. Disabled when the floor is 0.
	for _, source := range fuzzyCandidates {
		if fuzzyThreshold <= 0 {
			result.UnmatchedSources = append(result.UnmatchedSources, UnmatchedResource{
				Resource: source,
				Reason:   m.unmatchedReason(source, targetsByName, claimed),
			})
			continue
		}

		target, confidence := bestFuzzyTarget(source, orderedTargets, claimed)
		if confidence < fuzzyThreshold {
			result.UnmatchedSources = append(result.UnmatchedSources, UnmatchedResource{
				Resource: source,
				Reason:   fmt.Sprintf("best similarity %.2f is below threshold %.2f", confidence, fuzzyThreshold),
			})
			continue
		}
		claimed[target.ID] = source.ID
		result.Matched = append(result.Matched, &model.InstanceMatch{
			SourceID:    source.ID,
			TargetID:    target.ID,
			Confidence:  confidence,
			MatchMethod: model.MatchMethodFuzzy,
		})
	}

	for _, target := range orderedTargets {
		if _, ok := claimed[target.ID]; !ok {
			result.UnmatchedTargets = append(result.UnmatchedTargets, target)
		}
	}

	logger.Debugf("%s: %d sources, %d targets -> %d matched, %d unmatched sources, %d unmatched targets",
		op, len(sources), len(targets), len(result.Matched), len(result.UnmatchedSources), len(result.UnmatchedTargets))
	return result
}

// firstUnclaimed returns the first target in the slice not yet claimed by an earlier source.
func firstUnclaimed(candidates []ports.Resource, claimed map[string]string) (ports.Resource, bool) {
	for _, c := range candidates {
		if _, taken := claimed[c.ID]; !taken {
			return c, true
		}
	}
	return ports.Resource{}, false
}

// unmatchedReason distinguishes a name with no counterpart from one whose only
// counterpart was already claimed by an earlier source.
func (m *instanceMatcher) unmatchedReason(source ports.Resource, targetsByName map[string][]ports.Resource, claimed map[string]string) string {
	candidates := targetsByName[Normalize(source.Name)]
	if len(candidates) == 0 {
		return "no target shares the normalized name"
	}
	return fmt.Sprintf("target %s already claimed by source %s", candidates[0].ID, claimed[candidates[0].ID])
}

// bestFuzzyTarget scores the source name against every unclaimed target and returns
// the best candidate. Ties resolve to the lower target ID via the pre-sorted input.
func bestFuzzyTarget(source ports.Resource, targets []ports.Resource, claimed map[string]string) (ports.Resource, float64) {
	var best ports.Resource
	bestConfidence := -1.0
	sourceName := Normalize(source.Name)
	for _, target := range targets {
		if _, taken := claimed[target.ID]; taken {
			continue
		}
		confidence := similarity(sourceName, Normalize(target.Name))
		if confidence > bestConfidence {
			best = target
			bestConfidence = confidence
		}
	}
	return best, bestConfidence
}

// similarity maps edit distance onto [0, 1], where 1 is an exact match.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(longest)
}

func (m *instanceMatcher) Validate(pair *model.InstanceMatch, source, target ports.Resource) error {
	var result *multierror.Error

	if source.State != SourceStateReplicating {
		result = multierror.Append(result, fmt.Errorf(
			"source %s is %q, expected %q", source.ID, source.State, SourceStateReplicating))
	}
	if target.State != TargetStateStopped {
		result = multierror.Append(result, fmt.Errorf(
			"target %s is %q, expected %q", target.ID, target.State, TargetStateStopped))
	}
	if m.eligibleTargetTag != "" {
		if _, ok := target.Tags[m.eligibleTargetTag]; !ok {
			result = multierror.Append(result, fmt.Errorf(
				"target %s is missing the %q tag", target.ID, m.eligibleTargetTag))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		// The pair stays visible in results for operator review; it just never
		// feeds launch configuration.
		pair.Validated = false
		return err
	}
	pair.Validated = true
	return nil
}

var _ InstanceMatcher = (*instanceMatcher)(nil)

// Module provides the InstanceMatcher implementation.
var Module = fx.Options(
	fx.Provide(NewInstanceMatcher),
)
