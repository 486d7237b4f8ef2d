package plan_test

import (
	"testing"

	plan "github.com/tigerroll/tidal/pkg/recovery/core/config/plan"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"

	"github.com/stretchr/testify/assert"
)

const validPlanYAML = `
id: plan-east-to-west
name: East region failover
waves:
  - number: 1
    servers: [db-01, db-02]
    properties:
      timeout_seconds: 1800
      identity_preservation: true
  - number: 2
    servers: [web-01, web-02, web-03]
    approval-gate: true
    properties:
      fuzzy_threshold: "0.85"
`

func TestLoadPlanDefinitionFromBytes(t *testing.T) {
	p, err := plan.LoadPlanDefinitionFromBytes([]byte(validPlanYAML))
	assert.NoError(t, err)
	assert.Equal(t, "plan-east-to-west", p.ID)
	assert.Len(t, p.Waves, 2)

	// Properties are bound to typed wave options, with weakly typed conversion
	assert.Equal(t, 1800, p.Waves[0].Options.TimeoutSeconds)
	assert.True(t, p.Waves[0].Options.PreserveIdentity())
	assert.Equal(t, 0.85, p.Waves[1].Options.FuzzyThreshold)

	// A wave that never mentions identity preservation keeps it on.
	assert.True(t, p.Waves[1].Options.PreserveIdentity())

	assert.False(t, p.Waves[0].ApprovalGate)
	assert.True(t, p.Waves[1].ApprovalGate)
}

func TestLoadPlanDefinitionFromBytes_IdentityPreservationOptOut(t *testing.T) {
	const optOutYAML = `
id: plan-opt-out
name: Opt-out plan
waves:
  - number: 1
    servers: [db-01]
    properties:
      identity_preservation: false
`
	p, err := plan.LoadPlanDefinitionFromBytes([]byte(optOutYAML))
	assert.NoError(t, err)
	assert.False(t, p.Waves[0].Options.PreserveIdentity())
}

func TestLoadPlanDefinitionFromBytes_InvalidYAML(t *testing.T) {
	_, err := plan.LoadPlanDefinitionFromBytes([]byte("waves: [this is: not: yaml"))
	assert.Error(t, err)
}

func TestPlan_Validate(t *testing.T) {
	base := func() *plan.Plan {
		return &plan.Plan{
			ID:   "p1",
			Name: "p1",
			Waves: []plan.Wave{
				{Number: 1, Servers: []string{"a"}},
				{Number: 2, Servers: []string{"b"}},
			},
		}
	}

	assert.NoError(t, base().Validate())

	p := base()
	p.ID = ""
	assert.Error(t, p.Validate())

	p = base()
	p.Waves = nil
	assert.Error(t, p.Validate())

	// Duplicate wave number
	p = base()
	p.Waves[1].Number = 1
	err := p.Validate()
	assert.Error(t, err)
	assert.True(t, exception.IsErrorOfType(err, exception.ValidationException))

	// Empty server list
	p = base()
	p.Waves[0].Servers = nil
	assert.Error(t, p.Validate())

	// Same server in two waves
	p = base()
	p.Waves[1].Servers = []string{"a"}
	err = p.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "appears in both wave")
}
