package removal

import (
	"context"
	"fmt"

	"appsweep/internal/artifact"
	"appsweep/internal/events"
)

// forceRung is one escalation step. Its op loosens whatever is holding
// the item; the ladder walk then retries deletion and checks presence.
type forceRung struct {
	name string
	op   func(*Engine, string) error
}

// directoryLadder and fileLadder are the fixed escalation orders. The
// deferred-deletion fallback is appended by the ladder walk, not listed
// here, because verification re-attempts run the ladder without it.
var directoryLadder = []forceRung{
	{StrategyUnlockAttributes, func(e *Engine, p string) error { return e.runner.ClearAttributes(p) }},
	{StrategyTakeOwnership, func(e *Engine, p string) error { return e.runner.TakeOwnership(p) }},
	{StrategyMirrorPurge, func(e *Engine, p string) error { return e.runner.MirrorEmptyDir(p) }},
	{StrategyShellRemove, func(e *Engine, p string) error { return e.runner.ShellRemoveDir(p) }},
}

var fileLadder = []forceRung{
	{StrategyUnlockAttributes, func(e *Engine, p string) error { return e.runner.ClearAttributes(p) }},
	{StrategyTakeOwnership, func(e *Engine, p string) error { return e.runner.TakeOwnership(p) }},
	{StrategyShellDelete, func(e *Engine, p string) error { return e.runner.ShellDeleteFile(p) }},
}

// ForceRemove escalates the artifacts that failed the standard pass.
// Every artifact is re-validated first; a denial is final and is never
// escalated. Filesystem artifacts walk their escalation ladder and fall
// back to a deferred boot-time deletion, which counts as success.
func (e *Engine) ForceRemove(ctx context.Context, artifacts []*artifact.Artifact, dryRun bool) (*artifact.Summary, []artifact.Result, error) {
	ordered := make([]*artifact.Artifact, len(artifacts))
	copy(ordered, artifacts)
	artifact.SortForRemoval(ordered)

	summary := &artifact.Summary{}
	results := make([]artifact.Result, 0, len(ordered))

	if dryRun {
		for _, a := range ordered {
			res := artifact.Result{ArtifactID: a.ID, Path: a.Path, Type: a.Type, Success: true, Strategy: StrategyDryRun}
			e.record(a, res, summary)
			results = append(results, res)
		}
		return summary, results, nil
	}
	if len(ordered) == 0 {
		return summary, results, nil
	}
	if !e.elevation.IsElevated() {
		return nil, nil, fmt.Errorf("cannot force removal: %w", artifact.ErrPrivilegeRequired)
	}

	for _, a := range ordered {
		if err := ctx.Err(); err != nil {
			return summary, results, err
		}
		res := e.forceOne(a)
		e.record(a, res, summary)
		results = append(results, res)
	}
	return summary, results, nil
}

// forceOne escalates a single artifact.
func (e *Engine) forceOne(a *artifact.Artifact) artifact.Result {
	res := artifact.Result{ArtifactID: a.ID, Path: a.Path, Type: a.Type}

	if verdict := e.validator.IsRemovalAllowed(a); !verdict.Allowed {
		res.Err = fmt.Sprintf("%s: %s", artifact.ErrSafetyDenied, verdict.Reason)
		return res
	}

	switch a.Type {
	case artifact.Directory:
		return e.walkLadder(a, res, directoryLadder, true)
	case artifact.File:
		return e.walkLadder(a, res, fileLadder, true)
	case artifact.Registry:
		e.emitPlan(a, []string{StrategyRegistryDelete})
		e.emitAttempt(a, StrategyRegistryDelete)
		return e.removeRegistry(a, res)
	case artifact.Service:
		e.emitPlan(a, []string{StrategyServiceDelete})
		e.emitAttempt(a, StrategyServiceDelete)
		return e.removeService(a, res)
	default:
		res.Err = fmt.Sprintf("%s: %s", artifact.ErrUnsupportedType, a.Type)
		return res
	}
}

// walkLadder runs each rung's tool, retries deletion, and checks whether
// the path is gone. With allowPending, an exhausted ladder falls through
// to deferred boot-time deletion, which succeeds with the item still on
// disk.
func (e *Engine) walkLadder(a *artifact.Artifact, res artifact.Result, ladder []forceRung, allowPending bool) artifact.Result {
	names := make([]string, 0, len(ladder)+1)
	for _, rung := range ladder {
		names = append(names, rung.name)
	}
	if allowPending {
		names = append(names, StrategyPendingDelete)
	}
	e.emitPlan(a, names)

	var lastErr error
	for _, rung := range ladder {
		e.emitAttempt(a, rung.name)
		if err := rung.op(e, a.Path); err != nil {
			e.log.Debug("force strategy tool failed", "path", a.Path, "strategy", rung.name, "error", err)
			lastErr = err
		}

		if a.Type == artifact.Directory {
			lastErr = latestErr(e.fs.RemoveAll(a.Path), lastErr)
		} else {
			lastErr = latestErr(e.fs.Remove(a.Path), lastErr)
		}

		exists, err := e.fs.Exists(a.Path)
		if err == nil && !exists {
			e.log.Info("force removal succeeded", "path", a.Path, "strategy", rung.name)
			res.Success = true
			res.Strategy = rung.name
			return res
		}
	}

	if !allowPending {
		res.Strategy = ladder[len(ladder)-1].name
		res.Err = ladderError(lastErr, a.Path)
		return res
	}

	e.emitAttempt(a, StrategyPendingDelete)
	res.Strategy = StrategyPendingDelete
	if err := e.registrar.RegisterPendingDelete(a.Path); err != nil {
		res.Err = err.Error()
		res.RetryStrategy = StrategyPendingDelete
		return res
	}
	e.log.Info("queued for deletion at next boot", "path", a.Path)
	res.Success = true
	return res
}

func ladderError(lastErr error, path string) string {
	if lastErr != nil {
		return fmt.Sprintf("%s: %s", artifact.ErrStrategyFailed, lastErr)
	}
	return fmt.Sprintf("%s: %s still present after every strategy", artifact.ErrStrategyFailed, path)
}

// latestErr keeps the most recent non-nil error.
func latestErr(err, prev error) error {
	if err != nil {
		return err
	}
	return prev
}

// emitPlan announces the escalation order once per artifact id.
func (e *Engine) emitPlan(a *artifact.Artifact, strategies []string) {
	if e.planned[a.ID] {
		return
	}
	e.planned[a.ID] = true
	e.emitter.Emit(events.Event{
		Type:      events.TypeForceRemovalPlan,
		Timestamp: e.clock.Now(),
		Payload: map[string]any{
			"artifactId": a.ID,
			"path":       a.Path,
			"kind":       string(a.Type),
			"strategies": strategies,
		},
	})
}

func (e *Engine) emitAttempt(a *artifact.Artifact, strategy string) {
	e.emitter.Emit(events.Event{
		Type:      events.TypeForceAttempt,
		Timestamp: e.clock.Now(),
		Payload: map[string]any{
			"artifactId": a.ID,
			"path":       a.Path,
			"strategy":   strategy,
		},
	})
}

// Verify re-checks every artifact marked removed. An artifact still
// present gets one direct re-attempt without the deferred-deletion
// fallback; if it survives that too, it is flipped back to failed and
// the summary totals are adjusted down. Artifacts queued for boot-time
// deletion are expected to still be present and are skipped, as are
// dry-run results and services, which have no cheap presence probe.
func (e *Engine) Verify(ctx context.Context, artifacts []*artifact.Artifact, summary *artifact.Summary) ([]artifact.Result, error) {
	var reversals []artifact.Result
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return reversals, err
		}
		if !a.Removed || a.Strategy == StrategyPendingDelete || a.Strategy == StrategyDryRun {
			continue
		}
		if a.Type == artifact.Service {
			continue
		}

		present, err := e.stillPresent(a)
		if err != nil {
			e.log.Warn("verification probe failed", "path", a.Path, "error", err)
			continue
		}
		if !present {
			continue
		}

		e.log.Warn("artifact reported removed is still present", "path", a.Path, "strategy", a.Strategy)
		retry := e.verifyAttempt(a)
		if retry.Success {
			a.Strategy = retry.Strategy
			continue
		}

		a.Removed = false
		if retry.Strategy != "" {
			a.Strategy = retry.Strategy
		}
		a.Err = fmt.Sprintf("%s: %s", artifact.ErrVerificationFailed, retry.Err)
		a.RetryStrategy = StrategyPendingDelete
		summary.RemovedCount--
		summary.FailureCount++
		summary.FreedBytes -= a.SizeBytes

		e.emitter.Emit(events.Event{
			Type:      events.TypeVerificationReversal,
			Timestamp: e.clock.Now(),
			Payload: map[string]any{
				"artifactId": a.ID,
				"path":       a.Path,
				"kind":       string(a.Type),
				"error":      a.Err,
			},
		})
		reversals = append(reversals, artifact.Result{
			ArtifactID:    a.ID,
			Path:          a.Path,
			Type:          a.Type,
			Strategy:      retry.Strategy,
			Err:           a.Err,
			RetryStrategy: StrategyPendingDelete,
		})
	}
	return reversals, nil
}

func (e *Engine) stillPresent(a *artifact.Artifact) (bool, error) {
	switch a.Type {
	case artifact.Directory, artifact.File:
		return e.fs.Exists(a.Path)
	case artifact.Registry:
		return e.runner.RegistryKeyExists(a.Path)
	default:
		return false, nil
	}
}

// verifyAttempt is the one extra attempt verification grants. The same
// gates as the force pass apply: a validator denial is final, and a
// missing elevation degrades to a plain reversal instead of running
// tools unelevated.
func (e *Engine) verifyAttempt(a *artifact.Artifact) artifact.Result {
	res := artifact.Result{ArtifactID: a.ID, Path: a.Path, Type: a.Type}
	if verdict := e.validator.IsRemovalAllowed(a); !verdict.Allowed {
		res.Err = fmt.Sprintf("%s: %s", artifact.ErrSafetyDenied, verdict.Reason)
		return res
	}
	if !e.elevation.IsElevated() {
		res.Err = artifact.ErrPrivilegeRequired.Error()
		return res
	}

	switch a.Type {
	case artifact.Directory:
		return e.walkLadder(a, res, directoryLadder, false)
	case artifact.File:
		return e.walkLadder(a, res, fileLadder, false)
	case artifact.Registry:
		e.emitAttempt(a, StrategyRegistryDelete)
		return e.removeRegistry(a, res)
	default:
		res.Err = fmt.Sprintf("%s: %s", artifact.ErrUnsupportedType, a.Type)
		return res
	}
}
