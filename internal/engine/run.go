package engine

import (
	"context"
	"errors"

	"appsweep/internal/app"
	"appsweep/internal/artifact"
	"appsweep/internal/events"
	"appsweep/internal/procsweep"
	"appsweep/internal/removal"
	"appsweep/internal/safety"
	"appsweep/internal/trust"
)

// Run executes the full cleanup workflow: snapshot, discovery, process
// sweep, standard removal, optional force escalation, verification, and
// the final summary. Phase failures that have a safe degraded mode (a
// failed sweep, a force pass without elevation) are recorded on the
// result instead of aborting the run.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := validateDescriptor(req.Descriptor); err != nil {
		return nil, err
	}

	snap := e.snapshot()
	report, anchors, err := e.discoveryEngine().Discover(req.Descriptor, snap)
	if err != nil {
		return nil, err
	}

	res := &RunResult{Report: report, DryRun: req.DryRun}

	selected := selectArtifacts(report.Artifacts, req.IncludeHeuristics)
	artifact.SortForRemoval(selected)
	res.Artifacts = selected
	if len(selected) == 0 {
		res.Summary = &artifact.Summary{}
		e.emitSummary(res)
		if anchors.Empty() {
			return res, ErrNothingDiscovered
		}
		return res, nil
	}

	if !req.SkipProcessSweep {
		sweepRes, err := e.sweepEngine().Sweep(ctx, req.Descriptor, snap, anchors, procsweep.Options{
			DryRun:      req.DryRun,
			MaxPasses:   req.SweepMaxPasses,
			WaitSeconds: req.SweepWaitSeconds,
		})
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return res, err
		case err != nil:
			e.deps.Log.Warn("process sweep failed, removal continues against live processes", "error", err)
			res.SweepErr = err.Error()
		default:
			res.Sweep = sweepRes
		}
	}

	validator := safety.NewValidator(anchors, e.blockedRoots())
	rem := removal.NewEngine(e.deps.FS, e.deps.Runner, e.deps.Registrar, validator, e.deps.Elevation, e.deps.Clock, e.deps.Emitter, e.deps.Log)

	_, results, err := rem.Remove(ctx, selected, req.DryRun)
	res.Results = results
	if err != nil {
		return res, err
	}

	if req.Force && !req.DryRun {
		if err := e.forcePass(ctx, rem, res); err != nil {
			return res, err
		}
	}

	summary := summarize(selected)
	if !req.DryRun {
		reversals, err := rem.Verify(ctx, selected, summary)
		res.Reversals = reversals
		if err != nil {
			return res, err
		}
	}
	res.Summary = summary
	e.emitSummary(res)
	return res, nil
}

// forcePass escalates the artifacts the standard pass failed. A missing
// elevation is recorded and skips the pass; the standard results stand.
func (e *Engine) forcePass(ctx context.Context, rem *removal.Engine, res *RunResult) error {
	var failed []*artifact.Artifact
	for _, a := range res.Artifacts {
		if !a.Removed {
			failed = append(failed, a)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	_, results, err := rem.ForceRemove(ctx, failed, false)
	res.Results = append(res.Results, results...)
	if err != nil {
		if errors.Is(err, artifact.ErrPrivilegeRequired) {
			e.deps.Log.Warn("force removal skipped", "error", err)
			res.ForceErr = err.Error()
			return nil
		}
		return err
	}
	return nil
}

// Discover resolves anchors and proposes artifacts without removing
// anything.
func (e *Engine) Discover(req DiscoverRequest) (*DiscoverResult, error) {
	if err := validateDescriptor(req.Descriptor); err != nil {
		return nil, err
	}

	report, anchors, err := e.discoveryEngine().Discover(req.Descriptor, e.snapshot())
	if err != nil {
		return nil, err
	}
	return &DiscoverResult{Report: report, Anchors: anchors.Anchors()}, nil
}

// Sweep stops processes related to the descriptor without removing
// artifacts.
func (e *Engine) Sweep(ctx context.Context, req SweepRequest) (*procsweep.Result, error) {
	if err := validateDescriptor(req.Descriptor); err != nil {
		return nil, err
	}

	snap := e.snapshot()
	anchors := e.resolveAnchors(req.Descriptor)
	return e.sweepEngine().Sweep(ctx, req.Descriptor, snap, anchors, procsweep.Options{
		DryRun:      req.DryRun,
		MaxPasses:   req.MaxPasses,
		WaitSeconds: req.WaitSeconds,
	})
}

// Processes lists the running processes related to the descriptor.
func (e *Engine) Processes(req ProcessesRequest) (*ProcessesResult, error) {
	if err := validateDescriptor(req.Descriptor); err != nil {
		return nil, err
	}

	snap := e.snapshot()
	anchors := e.resolveAnchors(req.Descriptor)
	return &ProcessesResult{
		Processes: procsweep.FindRelated(req.Descriptor, snap, anchors),
		Anchors:   anchors.Anchors(),
	}, nil
}

func (e *Engine) resolveAnchors(d *app.Descriptor) *trust.Set {
	return trust.NewResolver(e.deps.Folders, e.deps.FS).Resolve(d)
}

func validateDescriptor(d *app.Descriptor) error {
	if d == nil {
		return ErrNoDescriptor
	}
	return d.Validate()
}

// selectArtifacts keeps the artifacts that will be removed. Heuristic
// candidates stay deselected unless explicitly included.
func selectArtifacts(artifacts []*artifact.Artifact, includeHeuristics bool) []*artifact.Artifact {
	var out []*artifact.Artifact
	for _, a := range artifacts {
		if includeHeuristics && a.Metadata.Confidence == artifact.ConfidenceHeuristic {
			a.Selected = true
		}
		if a.Selected {
			out = append(out, a)
		}
	}
	return out
}

// summarize tallies final artifact states. It is recomputed from scratch
// after the force pass so re-attempted artifacts are never counted twice.
func summarize(artifacts []*artifact.Artifact) *artifact.Summary {
	s := &artifact.Summary{}
	for _, a := range artifacts {
		if a.Removed {
			s.RemovedCount++
			s.FreedBytes += a.SizeBytes
		} else {
			s.FailureCount++
		}
	}
	return s
}

func (e *Engine) emitSummary(res *RunResult) {
	e.deps.Emitter.Emit(events.Event{
		Type:      events.TypeSummary,
		Timestamp: e.deps.Clock.Now(),
		Payload: map[string]any{
			"artifacts":    len(res.Artifacts),
			"removedCount": res.Summary.RemovedCount,
			"failureCount": res.Summary.FailureCount,
			"freedBytes":   res.Summary.FreedBytes,
			"dryRun":       res.DryRun,
		},
	})
}
