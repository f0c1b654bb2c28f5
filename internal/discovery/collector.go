package discovery

import (
	"appsweep/internal/app"
	"appsweep/internal/artifact"
	"appsweep/internal/winpath"
)

// Seed is one authoritative artifact proposal. Seeds enter the artifact
// list unfiltered, and anchor-eligible seed reasons extend the trust
// anchor set.
type Seed struct {
	Type   artifact.Type
	Path   string
	Reason artifact.Reason
}

// Collector supplies authoritative seeds for a descriptor.
type Collector interface {
	Seeds(d *app.Descriptor) ([]Seed, error)
}

// DescriptorCollector derives seeds from the descriptor itself: uninstall
// registry entries, explicit artifact hints, and named services.
type DescriptorCollector struct{}

// Seeds returns the descriptor's authoritative proposals in a fixed
// order.
func (DescriptorCollector) Seeds(d *app.Descriptor) ([]Seed, error) {
	var seeds []Seed
	for _, key := range d.Registry.UninstallKeys {
		seeds = append(seeds, Seed{Type: artifact.Registry, Path: key, Reason: artifact.ReasonUninstallKey})
	}
	for _, hint := range d.ArtifactHints {
		if !winpath.IsAbs(hint) {
			continue
		}
		seeds = append(seeds, Seed{Type: artifact.Directory, Path: hint, Reason: artifact.ReasonHint})
	}
	for _, svc := range d.ServiceHints {
		seeds = append(seeds, Seed{Type: artifact.Service, Path: svc, Reason: artifact.ReasonServiceHint})
	}
	return seeds, nil
}
