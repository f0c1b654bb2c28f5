// Package trust builds the set of directories provably tied to the target
// application.
//
// Anchors come from authoritative sources only (registry values, computed
// package-family paths, explicit hints); heuristic finds never become
// anchors. The anchor set bounds every heuristic scan and every
// filesystem removal the engine performs.
package trust

import (
	"sort"
	"strings"

	"appsweep/internal/artifact"
	"appsweep/internal/winpath"
)

// Anchor is one trusted directory and the reason it is trusted.
type Anchor struct {
	// Path is the normalized directory path.
	Path string

	// Reason is the authoritative source that produced the anchor.
	Reason artifact.Reason
}

// Set owns the trust anchors for one run.
type Set struct {
	anchors []Anchor
	index   map[string]bool
}

// NewSet creates an empty anchor set.
func NewSet() *Set {
	return &Set{index: make(map[string]bool)}
}

// Add records a directory anchor. Relative paths, duplicates, and reasons
// outside the anchor-eligible allow-list are rejected; the bool reports
// whether an anchor was added.
func (s *Set) Add(path string, reason artifact.Reason) bool {
	if !reason.AnchorEligible() {
		return false
	}
	p := winpath.Normalize(path)
	if p == "" || !winpath.IsAbs(p) {
		return false
	}
	key := strings.ToLower(p)
	if s.index[key] {
		return false
	}
	s.index[key] = true
	s.anchors = append(s.anchors, Anchor{Path: p, Reason: reason})
	return true
}

// Anchors returns the anchors sorted by path for deterministic iteration.
func (s *Set) Anchors() []Anchor {
	out := make([]Anchor, len(s.anchors))
	copy(out, s.anchors)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Path) < strings.ToLower(out[j].Path)
	})
	return out
}

// Empty reports whether no authoritative source resolved.
func (s *Set) Empty() bool {
	return len(s.anchors) == 0
}

// Covering returns the anchor that is a case-insensitive path prefix of
// path, if any.
func (s *Set) Covering(path string) (Anchor, bool) {
	for _, a := range s.Anchors() {
		if winpath.HasPrefix(path, a.Path) {
			return a, true
		}
	}
	return Anchor{}, false
}

// Covers reports whether any anchor is a prefix of path.
func (s *Set) Covers(path string) bool {
	_, ok := s.Covering(path)
	return ok
}
