package procsweep

import (
	"strings"

	"appsweep/internal/app"
	"appsweep/internal/trust"
	"appsweep/internal/winpath"
)

// maxProcessMatches caps how many processes one descriptor may claim.
// A descriptor that matches more than this is almost certainly matching
// processes it does not own.
const maxProcessMatches = 25

// FindRelated returns the snapshot processes related to the descriptor:
// image path under a trust anchor, image path under a path-like process
// hint, or exact name match against a non-path hint. The result preserves
// snapshot order and is capped at maxProcessMatches.
func FindRelated(d *app.Descriptor, snapshot *app.Snapshot, anchors *trust.Set) []app.ProcessRecord {
	var pathHints, nameHints []string
	for _, h := range d.ProcessHints {
		if winpath.IsPathLike(h) {
			pathHints = append(pathHints, h)
		} else {
			nameHints = append(nameHints, h)
		}
	}

	var matches []app.ProcessRecord
	for _, p := range snapshot.Processes {
		if len(matches) >= maxProcessMatches {
			break
		}
		if isRelated(p, pathHints, nameHints, anchors) {
			matches = append(matches, p)
		}
	}
	return matches
}

func isRelated(p app.ProcessRecord, pathHints, nameHints []string, anchors *trust.Set) bool {
	if p.Path != "" {
		if anchors != nil && anchors.Covers(p.Path) {
			return true
		}
		for _, h := range pathHints {
			if winpath.HasPrefix(p.Path, h) {
				return true
			}
		}
	}
	for _, h := range nameHints {
		if strings.EqualFold(p.Name, h) {
			return true
		}
	}
	return false
}
