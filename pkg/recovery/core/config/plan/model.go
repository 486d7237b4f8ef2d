// Package plan defines the YAML recovery-plan document and its loader. A plan names the
// ordered waves of a failover/failback run; StartExecution materializes a plan into a
// RecoveryExecution with one PENDING wave per plan wave.
package plan

// PlanDefinitionBytes holds the content of a plan file as a byte slice.
// It is typically supplied by the application from an embedded resource.
type PlanDefinitionBytes []byte

// Plan is the root of a recovery-plan definition document.
type Plan struct {
	// ID uniquely identifies the plan.
	ID string `yaml:"id"`
	// Name is the human-readable plan name.
	Name string `yaml:"name"`
	// Waves is the ordered list of wave definitions.
	Waves []Wave `yaml:"waves"`
}

// Wave is one ordered phase of a plan.
type Wave struct {
	// Number orders the wave within the plan; must be unique per plan.
	Number int `yaml:"number"`
	// Servers lists the source server IDs recovered by this wave.
	Servers []string `yaml:"servers"`
	// ApprovalGate pauses the execution for an external decision once this wave completes.
	ApprovalGate bool `yaml:"approval-gate"`
	// Properties carries free-form wave options, bound to WaveOptions by the loader.
	Properties map[string]interface{} `yaml:"properties"`

	// Options is populated from Properties during loading.
	Options WaveOptions `yaml:"-"`
}

// WaveOptions are the typed per-wave options bound from a wave's Properties map.
type WaveOptions struct {
	// TimeoutSeconds bounds how long the wave may stay unresolved; 0 falls back to the
	// orchestrator-level wave timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// FuzzyThreshold overrides the matcher's fuzzy-confidence floor for this wave; 0
	// keeps the configured default.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	// IdentityPreservation launches each server into its matched pre-provisioned
	// target. Unset means on; a wave must say `identity_preservation: false` to opt out.
	IdentityPreservation *bool `yaml:"identity_preservation"`
}

// PreserveIdentity reports whether matched pairs should be configured as launch
// targets for this wave. Identity preservation is the default for recovery.
func (o WaveOptions) PreserveIdentity() bool {
	return o.IdentityPreservation == nil || *o.IdentityPreservation
}
