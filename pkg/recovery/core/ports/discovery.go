package ports

import "context"

// Resource is one discovered compute resource on either side of a recovery boundary.
type Resource struct {
	ID string
	// Name is the display name; the instance matcher pairs resources by its normalized form.
	Name string
	// State is the provider-reported lifecycle state (e.g., "replicating", "stopped").
	State string
	// Tags carries provider tags; target eligibility is flagged through them.
	Tags map[string]string
}

// ResourceDiscovery lists the source and candidate target resources that feed the
// instance matcher.
type ResourceDiscovery interface {
	// ListSourceResources returns the protected source resources.
	ListSourceResources(ctx context.Context) ([]Resource, error)

	// ListCandidateTargets returns pre-provisioned targets carrying the given tag.
	ListCandidateTargets(ctx context.Context, tagFilter string) ([]Resource, error)
}
