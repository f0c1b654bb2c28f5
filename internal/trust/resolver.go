package trust

import (
	"strings"

	"appsweep/internal/app"
	"appsweep/internal/artifact"
	"appsweep/internal/config"
	"appsweep/internal/fsops"
	"appsweep/internal/winpath"
)

// Resolver turns a descriptor into an anchor set. The filesystem is only
// consulted to classify file-vs-directory paths and to locate packaged-app
// payload directories; it never contributes anchors on its own.
type Resolver struct {
	folders *config.KnownFolders
	fs      fsops.FS
}

// NewResolver creates a resolver. fs may be nil, in which case paths are
// classified by extension and the WindowsApps payload lookup is skipped.
func NewResolver(folders *config.KnownFolders, fs fsops.FS) *Resolver {
	return &Resolver{folders: folders, fs: fs}
}

// Resolve builds the anchor set from the descriptor's authoritative
// sources: registry InstallLocation, DisplayIcon's parent, computed
// package-family paths, and explicit path hints. When none resolve the
// set is empty and heuristic scanning stays disabled.
func (r *Resolver) Resolve(d *app.Descriptor) *Set {
	set := NewSet()

	if loc := d.Registry.InstallLocation; loc != "" {
		set.Add(r.toDirectory(loc), artifact.ReasonInstallRoot)
	}

	if icon := d.Registry.DisplayIcon; icon != "" {
		// DisplayIcon may carry an icon index suffix (",0").
		if i := strings.LastIndex(icon, ","); i > 0 {
			icon = icon[:i]
		}
		if winpath.IsAbs(icon) {
			set.Add(winpath.Dir(icon), artifact.ReasonRegistryInstallLocation)
		}
	}

	if pfn := d.PackageFamilyName; pfn != "" {
		set.Add(winpath.Join(r.folders.Packages, pfn), artifact.ReasonPackageFamilyData)
		for _, payload := range r.windowsAppsPayloads(pfn) {
			set.Add(payload, artifact.ReasonWindowsAppsPayload)
		}
	}

	for _, hint := range d.ArtifactHints {
		if winpath.IsAbs(hint) {
			set.Add(r.toDirectory(hint), artifact.ReasonHint)
		}
	}

	return set
}

// windowsAppsPayloads finds payload directories under Program
// Files\WindowsApps belonging to the package family. Payload names are
// "<name>_<version>_<arch>__<publisherId>" for family "<name>_<publisherId>".
func (r *Resolver) windowsAppsPayloads(pfn string) []string {
	if r.fs == nil {
		return nil
	}
	sep := strings.LastIndex(pfn, "_")
	if sep <= 0 {
		return nil
	}
	name, publisher := pfn[:sep], pfn[sep+1:]

	entries, err := r.fs.ReadDir(r.folders.WindowsApps)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		lower := strings.ToLower(e.Name)
		if strings.HasPrefix(lower, strings.ToLower(name)+"_") &&
			strings.HasSuffix(lower, "_"+strings.ToLower(publisher)) {
			out = append(out, winpath.Join(r.folders.WindowsApps, e.Name))
		}
	}
	return out
}

// toDirectory normalizes an authoritative path to a directory: a file path
// resolves to its parent. With no filesystem available a path whose last
// segment has a short extension is assumed to be a file.
func (r *Resolver) toDirectory(path string) string {
	p := winpath.Normalize(path)
	if r.fs != nil {
		if isDir, err := r.fs.IsDir(p); err == nil && isDir {
			return p
		}
		if exists, err := r.fs.Exists(p); err == nil && exists {
			return winpath.Dir(p)
		}
	}
	base := winpath.Base(p)
	if i := strings.LastIndex(base, "."); i > 0 && len(base)-i <= 5 {
		return winpath.Dir(p)
	}
	return p
}
