package safety

import (
	"fmt"
	"strings"

	"appsweep/internal/artifact"
	"appsweep/internal/trust"
)

// Verdict is the outcome of a safety check.
type Verdict struct {
	// Allowed reports whether removal may proceed.
	Allowed bool

	// Reason explains a denial; empty when allowed.
	Reason string
}

func allowed() Verdict {
	return Verdict{Allowed: true}
}

func denied(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// Validator applies the removal policy. It is consulted twice per
// artifact: when heuristic candidates are admitted during discovery and
// again immediately before every force-removal escalation.
type Validator struct {
	anchors *trust.Set
	blocked *BlockedRoots
}

// NewValidator creates a validator over the given anchor set and blocked
// roots.
func NewValidator(anchors *trust.Set, blocked *BlockedRoots) *Validator {
	return &Validator{anchors: anchors, blocked: blocked}
}

// IsRemovalAllowed decides allow/deny for one artifact.
//
// Directory/File: denied under a blocked root, denied without a covering
// trust anchor. Registry: allowed only for uninstall entries or keys under
// the HKLM\SOFTWARE or HKCU\Software hives. Service: allowed only when the
// descriptor named the service. Anything else: denied.
func (v *Validator) IsRemovalAllowed(a *artifact.Artifact) Verdict {
	switch a.Type {
	case artifact.Directory, artifact.File:
		if v.blocked.IsBlocked(a.Path) {
			return denied("%q is under a protected system directory", a.Path)
		}
		if !v.anchors.Covers(a.Path) {
			return denied("%q lacks a trusted anchor", a.Path)
		}
		return allowed()

	case artifact.Registry:
		if a.Metadata.Reason == artifact.ReasonUninstallKey {
			return allowed()
		}
		key := strings.ToLower(a.Path)
		for _, hive := range []string{`hklm\software`, `hkcu\software`} {
			if key == hive || strings.HasPrefix(key, hive+`\`) {
				return allowed()
			}
		}
		return denied("registry key %q is outside the removable hives", a.Path)

	case artifact.Service:
		if a.Metadata.Reason == artifact.ReasonServiceHint {
			return allowed()
		}
		return denied("service %q was not named by the descriptor", a.Path)

	default:
		return denied("unsupported artifact type %q", a.Type)
	}
}
