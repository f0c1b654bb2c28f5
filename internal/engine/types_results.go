package engine

import (
	"appsweep/internal/app"
	"appsweep/internal/artifact"
	"appsweep/internal/discovery"
	"appsweep/internal/procsweep"
	"appsweep/internal/trust"
)

// RunResult represents the outcome of a full workflow run.
type RunResult struct {
	// Report is the discovery output, including unselected candidates.
	Report *discovery.Report

	// Sweep is the process sweep outcome, nil when the sweep was
	// skipped.
	Sweep *procsweep.Result

	// SweepErr records a sweep failure that did not stop the run.
	SweepErr string

	// Artifacts are the selected artifacts in removal order, with their
	// final result fields populated.
	Artifacts []*artifact.Artifact

	// Results are the individual attempt outcomes, standard pass first,
	// then force escalations.
	Results []artifact.Result

	// ForceErr records a force-pass failure that did not stop the run.
	ForceErr string

	// Reversals are verification outcomes that flipped a reported
	// success back to failed.
	Reversals []artifact.Result

	// Summary is the final tally after verification.
	Summary *artifact.Summary

	// DryRun echoes the request flag.
	DryRun bool
}

// DiscoverResult represents the outcome of a discovery-only run.
type DiscoverResult struct {
	// Report is the discovery output.
	Report *discovery.Report

	// Anchors are the trust anchors the run resolved.
	Anchors []trust.Anchor
}

// ProcessesResult lists the processes related to the descriptor.
type ProcessesResult struct {
	// Processes are the matches, in snapshot order.
	Processes []app.ProcessRecord

	// Anchors are the trust anchors used for path matching.
	Anchors []trust.Anchor
}
