package engine

import "appsweep/internal/app"

// RunRequest represents a request to run the full cleanup workflow.
type RunRequest struct {
	// Descriptor identifies the target application.
	Descriptor *app.Descriptor

	// DryRun reports everything that would happen without acting.
	DryRun bool

	// IncludeHeuristics selects heuristic candidates for removal in
	// addition to the anchor-confidence artifacts.
	IncludeHeuristics bool

	// Force escalates failed removals through the force ladder.
	Force bool

	// SkipProcessSweep leaves related processes running.
	SkipProcessSweep bool

	// SweepMaxPasses bounds the process sweep rounds (0 = default).
	SweepMaxPasses int

	// SweepWaitSeconds is the pause between sweep rounds.
	SweepWaitSeconds int
}

// DiscoverRequest represents a request to discover artifacts without
// removing anything.
type DiscoverRequest struct {
	// Descriptor identifies the target application.
	Descriptor *app.Descriptor
}

// SweepRequest represents a request to stop related processes.
type SweepRequest struct {
	// Descriptor identifies the target application.
	Descriptor *app.Descriptor

	// DryRun reports what would be stopped without acting.
	DryRun bool

	// MaxPasses bounds the detection/termination rounds (0 = default).
	MaxPasses int

	// WaitSeconds is the pause between rounds.
	WaitSeconds int
}

// ProcessesRequest represents a request to list related processes.
type ProcessesRequest struct {
	// Descriptor identifies the target application.
	Descriptor *app.Descriptor
}
