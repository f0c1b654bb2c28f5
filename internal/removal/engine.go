package removal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"appsweep/internal/artifact"
	"appsweep/internal/clock"
	"appsweep/internal/events"
	"appsweep/internal/fsops"
	"appsweep/internal/privilege"
	"appsweep/internal/safety"
)

// registrySettleDelay is how long to wait after a registry delete before
// re-checking whether the key is gone. Registry writes are not always
// visible immediately to a follow-up query.
const registrySettleDelay = 300 * time.Millisecond

// Strategy names recorded on artifacts, results, and events.
const (
	StrategyDelete           = "Delete"
	StrategyDryRun           = "DryRun"
	StrategyUnlockAttributes = "UnlockAttributes"
	StrategyTakeOwnership    = "TakeOwnership"
	StrategyMirrorPurge      = "MirrorPurge"
	StrategyShellRemove      = "ShellRemove"
	StrategyShellDelete      = "ShellDelete"
	StrategyPendingDelete    = "PendingDelete"
	StrategyRegistryDelete   = "RegistryDelete"
	StrategyServiceDelete    = "ServiceDelete"
)

// Engine runs the standard and force removal passes over one run's
// artifacts. The same engine instance handles both passes plus the
// verification sweep so the force-plan dedup state spans them.
type Engine struct {
	fs        fsops.FS
	runner    SystemToolRunner
	registrar DeferredDeletionRegistrar
	validator *safety.Validator
	elevation privilege.Elevation
	clock     clock.Clock
	emitter   events.Emitter
	log       *slog.Logger

	// planned tracks artifact ids that already emitted a force plan.
	planned map[string]bool
}

// NewEngine creates a removal engine.
func NewEngine(fs fsops.FS, runner SystemToolRunner, registrar DeferredDeletionRegistrar, validator *safety.Validator, elevation privilege.Elevation, clk clock.Clock, emitter events.Emitter, log *slog.Logger) *Engine {
	return &Engine{
		fs:        fs,
		runner:    runner,
		registrar: registrar,
		validator: validator,
		elevation: elevation,
		clock:     clk,
		emitter:   emitter,
		log:       log,
		planned:   make(map[string]bool),
	}
}

// Remove runs the standard pass: one plain deletion attempt per artifact
// in the fixed type order, no escalation. An artifact that is already
// absent counts as removed. A dry run marks everything successful without
// acting.
func (e *Engine) Remove(ctx context.Context, artifacts []*artifact.Artifact, dryRun bool) (*artifact.Summary, []artifact.Result, error) {
	ordered := make([]*artifact.Artifact, len(artifacts))
	copy(ordered, artifacts)
	artifact.SortForRemoval(ordered)

	summary := &artifact.Summary{}
	results := make([]artifact.Result, 0, len(ordered))
	for _, a := range ordered {
		if err := ctx.Err(); err != nil {
			return summary, results, err
		}
		res := e.removeOne(a, dryRun)
		e.record(a, res, summary)
		results = append(results, res)
	}
	return summary, results, nil
}

// removeOne attempts one plain removal.
func (e *Engine) removeOne(a *artifact.Artifact, dryRun bool) artifact.Result {
	res := artifact.Result{ArtifactID: a.ID, Path: a.Path, Type: a.Type}
	if dryRun {
		res.Success = true
		res.Strategy = StrategyDryRun
		return res
	}

	switch a.Type {
	case artifact.Directory, artifact.File:
		return e.removeFilesystem(a, res)
	case artifact.Registry:
		return e.removeRegistry(a, res)
	case artifact.Service:
		return e.removeService(a, res)
	default:
		res.Err = fmt.Sprintf("%s: %s", artifact.ErrUnsupportedType, a.Type)
		return res
	}
}

func (e *Engine) removeFilesystem(a *artifact.Artifact, res artifact.Result) artifact.Result {
	res.Strategy = StrategyDelete

	exists, err := e.fs.Exists(a.Path)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	if !exists {
		res.Success = true
		return res
	}

	if a.Type == artifact.Directory {
		err = e.fs.RemoveAll(a.Path)
	} else {
		err = e.fs.Remove(a.Path)
	}
	if err != nil {
		res.Err = err.Error()
		res.RetryStrategy = StrategyUnlockAttributes
		return res
	}
	res.Success = true
	return res
}

func (e *Engine) removeRegistry(a *artifact.Artifact, res artifact.Result) artifact.Result {
	res.Strategy = StrategyRegistryDelete

	exists, err := e.runner.RegistryKeyExists(a.Path)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	if !exists {
		res.Success = true
		return res
	}

	delErr := e.runner.DeleteRegistryKey(a.Path)
	e.clock.Sleep(registrySettleDelay)

	still, checkErr := e.runner.RegistryKeyExists(a.Path)
	if checkErr == nil && !still {
		res.Success = true
		return res
	}
	switch {
	case delErr != nil:
		res.Err = delErr.Error()
	case checkErr != nil:
		res.Err = checkErr.Error()
	default:
		res.Err = fmt.Sprintf("registry key %s still present after delete", a.Path)
	}
	return res
}

func (e *Engine) removeService(a *artifact.Artifact, res artifact.Result) artifact.Result {
	res.Strategy = StrategyServiceDelete

	if err := e.runner.StopService(a.Path); err != nil {
		e.log.Debug("service stop failed, deleting anyway", "service", a.Path, "error", err)
	}
	if err := e.runner.DeleteService(a.Path); err != nil {
		res.Err = err.Error()
		return res
	}
	res.Success = true
	return res
}

// record applies an attempt outcome to the artifact, folds it into the
// summary, and emits the removalResult event.
func (e *Engine) record(a *artifact.Artifact, res artifact.Result, summary *artifact.Summary) {
	a.Removed = res.Success
	a.Strategy = res.Strategy
	a.Err = res.Err
	a.RetryStrategy = res.RetryStrategy

	if res.Success {
		summary.RemovedCount++
		summary.FreedBytes += a.SizeBytes
	} else {
		summary.FailureCount++
	}

	e.emitter.Emit(events.Event{
		Type:      events.TypeRemovalResult,
		Timestamp: e.clock.Now(),
		Payload: map[string]any{
			"artifactId": a.ID,
			"path":       a.Path,
			"kind":       string(a.Type),
			"success":    res.Success,
			"strategy":   res.Strategy,
			"error":      res.Err,
		},
	})
}
