// Package safety decides whether a candidate artifact may be removed.
//
// Two independent layers apply: blocked roots (protected system
// directories, never bypassable) and trust anchors (a filesystem artifact
// must sit under a directory proven to belong to the target application).
// Blocked roots are evaluated first; a path under both an anchor and a
// blocked root is still denied.
package safety

import (
	"appsweep/internal/config"
	"appsweep/internal/winpath"
)

// BlockedRoots is the fixed set of protected directories, resolved once
// per run.
type BlockedRoots struct {
	roots []string
}

// NewBlockedRoots derives the protected set from the known folders: the
// OS root, system binary directories, shared component roots, and the
// packaged-app payload root.
func NewBlockedRoots(folders *config.KnownFolders) *BlockedRoots {
	return &BlockedRoots{roots: []string{
		folders.SystemRoot,
		folders.System32,
		folders.SysWOW64,
		folders.CommonFiles,
		folders.CommonFilesX86,
		folders.WindowsApps,
	}}
}

// IsBlocked reports whether path is a blocked root or lives under one.
func (b *BlockedRoots) IsBlocked(path string) bool {
	for _, root := range b.roots {
		if root == "" {
			continue
		}
		if winpath.HasPrefix(path, root) {
			return true
		}
	}
	return false
}

// Roots returns the protected directories.
func (b *BlockedRoots) Roots() []string {
	out := make([]string, len(b.roots))
	copy(out, b.roots)
	return out
}
