// Package app defines the application descriptor and OS snapshot inputs the
// engine consumes.
//
// A descriptor is a loosely-specified pointer at an installed application:
// whatever the caller's inventory knows about it (registry values, package
// family name, process/service names). The engine treats it as immutable.
package app

import (
	"fmt"

	"appsweep/internal/winpath"
)

// RegistryHints carries the registry-sourced values of a descriptor.
type RegistryHints struct {
	// InstallLocation is the InstallLocation value of the uninstall entry.
	InstallLocation string `yaml:"installLocation"`

	// DisplayIcon is the DisplayIcon value; its parent directory is an
	// authoritative location when it points into an install tree.
	DisplayIcon string `yaml:"displayIcon"`

	// UninstallKeys are full uninstall-entry key paths for this app.
	UninstallKeys []string `yaml:"uninstallKeys"`
}

// Descriptor identifies the target application. All fields are optional;
// the engine works with whatever is present and prefers false negatives
// when nothing authoritative resolves.
type Descriptor struct {
	// Name is the display name of the application.
	Name string `yaml:"name"`

	// Registry holds registry-sourced hints.
	Registry RegistryHints `yaml:"registry"`

	// PackageFamilyName is the packaged-app family name, if any.
	PackageFamilyName string `yaml:"packageFamilyName"`

	// ArtifactHints are explicit paths known to belong to the app.
	ArtifactHints []string `yaml:"artifactHints"`

	// ProcessHints are process names or image paths related to the app.
	ProcessHints []string `yaml:"processHints"`

	// ServiceHints are service names related to the app.
	ServiceHints []string `yaml:"serviceHints"`

	// Tags are free-form labels supplied by the inventory.
	Tags []string `yaml:"tags"`
}

// Validate checks the descriptor is usable: it must name the application
// and any path-valued hints must be absolute.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has no application name")
	}
	if loc := d.Registry.InstallLocation; loc != "" && !winpath.IsAbs(loc) {
		return fmt.Errorf("installLocation %q is not an absolute path", loc)
	}
	for _, h := range d.ArtifactHints {
		if !winpath.IsAbs(h) {
			return fmt.Errorf("artifact hint %q is not an absolute path", h)
		}
	}
	return nil
}
