package procsweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"appsweep/internal/app"
	"appsweep/internal/artifact"
	"appsweep/internal/clock"
	"appsweep/internal/events"
	"appsweep/internal/privilege"
	"appsweep/internal/trust"
)

// settleDelay is how long to wait after a termination attempt before
// checking liveness again.
const settleDelay = 500 * time.Millisecond

// strategy is one rung of the termination ladder.
type strategy struct {
	name string
	run  func(Controller, int) error
}

// ladder is the ordered termination ladder; the first strategy that
// leaves the process dead wins.
var ladder = []strategy{
	{"CloseMainWindow", func(c Controller, pid int) error { return c.CloseMainWindow(pid) }},
	{"StopGraceful", func(c Controller, pid int) error { return c.StopGraceful(pid) }},
	{"StopForced", func(c Controller, pid int) error { return c.StopForced(pid) }},
	{"KillUtility", func(c Controller, pid int) error { return c.KillUtility(pid) }},
	{"ManagementTerminate", func(c Controller, pid int) error { return c.ManagementTerminate(pid) }},
}

// Options controls a sweep.
type Options struct {
	// DryRun reports what would be stopped without acting.
	DryRun bool

	// MaxPasses bounds how many detection/termination rounds run.
	MaxPasses int

	// WaitSeconds is the pause between rounds.
	WaitSeconds int
}

// Result summarizes a sweep.
type Result struct {
	// Detected is how many related processes the first pass found.
	Detected int

	// Stopped is how many of those are no longer running.
	Stopped int

	// Attempts is the total number of termination attempts made.
	Attempts int

	// Remaining lists processes that survived every pass.
	Remaining []app.ProcessRecord
}

// Engine runs process sweeps.
type Engine struct {
	controller Controller
	provider   app.SnapshotProvider
	elevation  privilege.Elevation
	clock      clock.Clock
	emitter    events.Emitter
	log        *slog.Logger
}

// NewEngine creates a sweep engine.
func NewEngine(controller Controller, provider app.SnapshotProvider, elevation privilege.Elevation, clk clock.Clock, emitter events.Emitter, log *slog.Logger) *Engine {
	return &Engine{
		controller: controller,
		provider:   provider,
		elevation:  elevation,
		clock:      clk,
		emitter:    emitter,
		log:        log,
	}
}

// Sweep terminates processes related to the descriptor. Each pass runs
// the termination ladder over the live matches; survivors are
// re-snapshotted and retried after the configured wait. A dry run reports
// every detected process as stopped without acting.
func (e *Engine) Sweep(ctx context.Context, d *app.Descriptor, snapshot *app.Snapshot, anchors *trust.Set, opts Options) (*Result, error) {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = 3
	}

	matches := FindRelated(d, snapshot, anchors)
	res := &Result{Detected: len(matches)}

	if opts.DryRun {
		res.Stopped = res.Detected
		return res, nil
	}
	if len(matches) == 0 {
		return res, nil
	}
	if !e.elevation.IsElevated() {
		return nil, fmt.Errorf("cannot terminate processes: %w", artifact.ErrPrivilegeRequired)
	}

	pending := matches
	for pass := 1; pass <= opts.MaxPasses && len(pending) > 0; pass++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if pass > 1 {
			e.clock.Sleep(time.Duration(opts.WaitSeconds) * time.Second)
			pending = e.refresh(d, pending, anchors, res)
			if len(pending) == 0 {
				break
			}
		}

		var survivors []app.ProcessRecord
		for _, p := range pending {
			stopped := e.terminate(p, res)
			if !stopped {
				survivors = append(survivors, p)
			}
		}
		pending = survivors

		e.emitter.Emit(events.Event{
			Type:      events.TypeProcessSweepPass,
			Timestamp: e.clock.Now(),
			Payload: map[string]any{
				"pass":      pass,
				"detected":  res.Detected,
				"stopped":   res.Stopped,
				"remaining": len(pending),
			},
		})
	}

	res.Remaining = pending
	return res, nil
}

// terminate walks the ladder for one process, reporting whether it ended
// up stopped.
func (e *Engine) terminate(p app.ProcessRecord, res *Result) bool {
	alive, err := e.controller.IsAlive(p.PID)
	if err != nil {
		e.log.Warn("liveness check failed", "pid", p.PID, "error", err)
	}
	if err == nil && !alive {
		res.Stopped++
		return true
	}

	for _, s := range ladder {
		res.Attempts++
		if err := s.run(e.controller, p.PID); err != nil {
			e.log.Debug("termination strategy failed", "pid", p.PID, "strategy", s.name, "error", err)
		}
		e.clock.Sleep(settleDelay)

		alive, err := e.controller.IsAlive(p.PID)
		if err != nil {
			e.log.Warn("liveness check failed", "pid", p.PID, "error", err)
			continue
		}
		if !alive {
			e.log.Info("process stopped", "pid", p.PID, "name", p.Name, "strategy", s.name)
			res.Stopped++
			return true
		}
	}
	return false
}

// refresh re-snapshots the machine and keeps only the survivors that are
// still related and still running. A survivor missing from the fresh
// snapshot counts as stopped.
func (e *Engine) refresh(d *app.Descriptor, survivors []app.ProcessRecord, anchors *trust.Set, res *Result) []app.ProcessRecord {
	snap, err := e.provider.Snapshot()
	if err != nil {
		e.log.Warn("re-snapshot failed, retrying previous matches", "error", err)
		return survivors
	}

	current := make(map[int]bool)
	for _, p := range FindRelated(d, snap, anchors) {
		current[p.PID] = true
	}

	var still []app.ProcessRecord
	for _, p := range survivors {
		if current[p.PID] {
			still = append(still, p)
		} else {
			res.Stopped++
		}
	}
	return still
}
