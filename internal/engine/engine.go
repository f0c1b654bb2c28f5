// Package engine provides the core business logic for appsweep operations.
//
// The engine package acts as the orchestration layer between CLI commands
// and the phase engines. It coordinates machine snapshots, artifact
// discovery, process sweeps, and the standard/force removal passes.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Run: The full uninstall-cleanup workflow
//   - Discover/Sweep: Individual phases exposed as standalone operations
package engine

import (
	"log/slog"

	"appsweep/internal/app"
	"appsweep/internal/clock"
	"appsweep/internal/config"
	"appsweep/internal/discovery"
	"appsweep/internal/events"
	"appsweep/internal/fsops"
	"appsweep/internal/privilege"
	"appsweep/internal/procsweep"
	"appsweep/internal/removal"
	"appsweep/internal/safety"
)

// Deps are the collaborators an Engine needs. Everything that touches the
// machine sits behind an interface so the workflow can run against fakes.
type Deps struct {
	Folders    *config.KnownFolders
	FS         fsops.FS
	Runner     removal.SystemToolRunner
	Registrar  removal.DeferredDeletionRegistrar
	Provider   app.SnapshotProvider
	Collector  discovery.Collector
	Shortcuts  discovery.ShortcutResolver
	Controller procsweep.Controller
	Elevation  privilege.Elevation
	Clock      clock.Clock
	Emitter    events.Emitter
	Log        *slog.Logger
}

// Engine orchestrates all appsweep operations.
// It is the main API surface called by the CLI.
type Engine struct {
	deps Deps
}

// New creates a new Engine with the given dependencies.
func New(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// snapshot captures the machine's process and service state. A failed
// snapshot degrades to an empty one; discovery still works from the
// registry and filesystem alone.
func (e *Engine) snapshot() *app.Snapshot {
	snap, err := e.deps.Provider.Snapshot()
	if err != nil {
		e.deps.Log.Warn("machine snapshot failed, continuing without process data", "error", err)
		return &app.Snapshot{}
	}
	return snap
}

// discoveryEngine builds the per-run discovery engine.
func (e *Engine) discoveryEngine() *discovery.Engine {
	return discovery.NewEngine(e.deps.Folders, e.deps.FS, e.deps.Collector, e.deps.Shortcuts, e.blockedRoots(), e.deps.Emitter, e.deps.Clock, e.deps.Log)
}

// blockedRoots derives the protected directories for this machine.
func (e *Engine) blockedRoots() *safety.BlockedRoots {
	return safety.NewBlockedRoots(e.deps.Folders)
}

// sweepEngine builds the per-run process sweep engine.
func (e *Engine) sweepEngine() *procsweep.Engine {
	return procsweep.NewEngine(e.deps.Controller, e.deps.Provider, e.deps.Elevation, e.deps.Clock, e.deps.Emitter, e.deps.Log)
}
