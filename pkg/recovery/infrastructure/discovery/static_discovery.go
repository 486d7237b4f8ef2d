// Package discovery provides the ResourceDiscovery adaptor. The static implementation
// serves a fixed inventory, which is enough for drills and local runs where the real
// cross-account inventory service is absent.
package discovery

import (
	"context"

	"github.com/tigerroll/tidal/pkg/recovery/core/ports"

	"go.uber.org/fx"
)

// StaticResourceDiscovery serves a fixed source and target inventory.
type StaticResourceDiscovery struct {
	sources []ports.Resource
	targets []ports.Resource
}

// NewStaticResourceDiscovery creates a discovery over the given inventory.
func NewStaticResourceDiscovery(sources, targets []ports.Resource) *StaticResourceDiscovery {
	return &StaticResourceDiscovery{sources: sources, targets: targets}
}

// NewMirroredInventory builds a demo inventory where every server has a replicating
// source and a stopped, tagged target of the same name.
func NewMirroredInventory(serverIDs []string, eligibleTag string) (sources, targets []ports.Resource) {
	for _, id := range serverIDs {
		sources = append(sources, ports.Resource{
			ID:    "src-" + id,
			Name:  id,
			State: "replicating",
		})
		targets = append(targets, ports.Resource{
			ID:    "tgt-" + id,
			Name:  id,
			State: "stopped",
			Tags:  map[string]string{eligibleTag: "true"},
		})
	}
	return sources, targets
}

func (d *StaticResourceDiscovery) ListSourceResources(ctx context.Context) ([]ports.Resource, error) {
	out := make([]ports.Resource, len(d.sources))
	copy(out, d.sources)
	return out, nil
}

func (d *StaticResourceDiscovery) ListCandidateTargets(ctx context.Context, tagFilter string) ([]ports.Resource, error) {
	out := make([]ports.Resource, 0, len(d.targets))
	for _, t := range d.targets {
		if tagFilter != "" {
			if _, ok := t.Tags[tagFilter]; !ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

var _ ports.ResourceDiscovery = (*StaticResourceDiscovery)(nil)

// Module provides the static ResourceDiscovery. The inventory itself is supplied by
// the application wiring under the named groups below.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewStaticResourceDiscovery,
			fx.ParamTags(`name:"discovery_sources"`, `name:"discovery_targets"`),
			fx.As(new(ports.ResourceDiscovery)),
		),
	),
)
