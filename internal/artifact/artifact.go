// Package artifact defines the discovered-item model shared by the
// discovery, removal, and force-removal engines.
//
// Artifacts are created only by discovery. The removal engines mutate only
// the result fields of existing artifacts; failed artifacts stay in the
// list so summaries never silently drop them.
package artifact

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"appsweep/internal/winpath"
)

// Type classifies what an artifact is on the machine.
type Type string

const (
	Directory Type = "Directory"
	File      Type = "File"
	Registry  Type = "Registry"
	Service   Type = "Service"
)

// removalOrder is the fixed processing order: directories first avoids
// redundant nested-file failures.
var removalOrder = map[Type]int{
	Directory: 0,
	File:      1,
	Registry:  2,
	Service:   3,
}

// Confidence records how an artifact was found.
type Confidence string

const (
	// ConfidenceAnchor marks artifacts from authoritative sources.
	ConfidenceAnchor Confidence = "anchor"

	// ConfidenceHeuristic marks artifacts from token-match scans.
	ConfidenceHeuristic Confidence = "heuristic"
)

// Reason is the closed set of justifications for an artifact's existence.
type Reason string

const (
	ReasonInstallRoot             Reason = "InstallRoot"
	ReasonHint                    Reason = "Hint"
	ReasonRegistryInstallLocation Reason = "RegistryInstallLocation"
	ReasonDisplayIconLocation     Reason = "DisplayIconLocation"
	ReasonPackageFamilyData       Reason = "PackageFamilyData"
	ReasonWindowsAppsPayload      Reason = "WindowsAppsPayload"
	ReasonUninstallKey            Reason = "UninstallKey"
	ReasonServiceHint             Reason = "ServiceHint"
	ReasonProcessImage            Reason = "ProcessImage"
	ReasonHeuristicScan           Reason = "HeuristicScan"
	ReasonShortcutMatch           Reason = "ShortcutMatch"
)

// AnchorEligible reports whether a reason is allowed to create a trust
// anchor. Heuristic finds never qualify.
func (r Reason) AnchorEligible() bool {
	switch r {
	case ReasonInstallRoot, ReasonHint, ReasonRegistryInstallLocation,
		ReasonPackageFamilyData, ReasonWindowsAppsPayload:
		return true
	}
	return false
}

// Metadata carries the provenance of an artifact.
type Metadata struct {
	// Reason is why this artifact was proposed.
	Reason Reason `json:"reason"`

	// SourceAnchor is the anchor path the artifact was found under,
	// empty for artifacts that are anchors themselves.
	SourceAnchor string `json:"sourceAnchor,omitempty"`

	// Confidence is anchor or heuristic.
	Confidence Confidence `json:"confidence"`
}

// Artifact is one discovered filesystem/registry/service item proposed for
// removal.
type Artifact struct {
	// ID uniquely identifies the artifact within a run.
	ID string `json:"id"`

	// Type is the artifact kind.
	Type Type `json:"type"`

	// Path is the normalized filesystem path, registry key path, or
	// service name.
	Path string `json:"path"`

	// SizeBytes is the on-disk size when known, 0 otherwise.
	SizeBytes int64 `json:"sizeBytes,omitempty"`

	// Metadata records provenance.
	Metadata Metadata `json:"metadata"`

	// Selected is the pre-selection default: true for anchor
	// confidence, false for heuristic candidates.
	Selected bool `json:"selected"`

	// Result fields, owned by the removal engines.

	// Removed reports whether the artifact was successfully removed.
	Removed bool `json:"removed"`

	// Strategy is the strategy that succeeded, or the last one tried.
	Strategy string `json:"strategy,omitempty"`

	// Err is the last failure recorded for this artifact.
	Err string `json:"error,omitempty"`

	// RetryStrategy is a suggested follow-up when removal failed.
	RetryStrategy string `json:"retryStrategy,omitempty"`
}

// New creates an artifact with a fresh id and the pre-selection default
// for its confidence. Filesystem paths are normalized; registry keys and
// service names are kept verbatim.
func New(t Type, path string, meta Metadata) *Artifact {
	if t == Directory || t == File {
		path = winpath.Normalize(path)
	}
	return &Artifact{
		ID:       uuid.NewString(),
		Type:     t,
		Path:     path,
		Metadata: meta,
		Selected: meta.Confidence == ConfidenceAnchor,
	}
}

// Key returns the dedup key for the artifact: type plus lowercased
// normalized path.
func (a *Artifact) Key() string {
	return string(a.Type) + "|" + strings.ToLower(a.Path)
}

// SortForRemoval orders artifacts Directory, File, Registry, Service, then
// alphabetically by path within each type.
func SortForRemoval(artifacts []*Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		if removalOrder[artifacts[i].Type] != removalOrder[artifacts[j].Type] {
			return removalOrder[artifacts[i].Type] < removalOrder[artifacts[j].Type]
		}
		return strings.ToLower(artifacts[i].Path) < strings.ToLower(artifacts[j].Path)
	})
}

// Summary aggregates a removal pass.
type Summary struct {
	// RemovedCount is the number of artifacts removed (or dry-run
	// skipped as successful).
	RemovedCount int `json:"removedCount"`

	// FailureCount is the number of artifacts that ended failed.
	FailureCount int `json:"failureCount"`

	// FreedBytes is the sum of SizeBytes over succeeded artifacts only.
	FreedBytes int64 `json:"freedBytes"`
}

// Result records the outcome of one artifact's removal attempt.
type Result struct {
	ArtifactID string `json:"artifactId"`
	Path       string `json:"path"`
	Type       Type   `json:"type"`
	Success    bool   `json:"success"`

	// Strategy is the strategy that produced the outcome.
	Strategy string `json:"strategy,omitempty"`

	// Err is the failure detail, empty on success.
	Err string `json:"error,omitempty"`

	// RetryStrategy suggests the next escalation when one exists.
	RetryStrategy string `json:"retryStrategy,omitempty"`
}
