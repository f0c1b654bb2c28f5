package removal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appsweep/internal/artifact"
	"appsweep/internal/clock"
	"appsweep/internal/config"
	"appsweep/internal/events"
	"appsweep/internal/fsops"
	"appsweep/internal/privilege"
	"appsweep/internal/safety"
	"appsweep/internal/trust"
)

// fakeRunner backs the tool interface with in-memory state. unlockAt
// names the strategy whose tool call releases the fake filesystem lock,
// simulating the rung that finally works.
type fakeRunner struct {
	fs       *fsops.Fake
	unlockAt string
	calls    []string

	registry map[string]bool
	sticky   map[string]bool
	services map[string]bool
}

func newFakeRunner(fs *fsops.Fake) *fakeRunner {
	return &fakeRunner{
		fs:       fs,
		registry: make(map[string]bool),
		sticky:   make(map[string]bool),
		services: make(map[string]bool),
	}
}

func (f *fakeRunner) tool(strategy, path string) error {
	f.calls = append(f.calls, strategy)
	if f.unlockAt == strategy {
		f.fs.Unlock(path)
	}
	return nil
}

func (f *fakeRunner) ClearAttributes(p string) error { return f.tool(StrategyUnlockAttributes, p) }
func (f *fakeRunner) TakeOwnership(p string) error   { return f.tool(StrategyTakeOwnership, p) }
func (f *fakeRunner) MirrorEmptyDir(p string) error  { return f.tool(StrategyMirrorPurge, p) }
func (f *fakeRunner) ShellRemoveDir(p string) error  { return f.tool(StrategyShellRemove, p) }
func (f *fakeRunner) ShellDeleteFile(p string) error { return f.tool(StrategyShellDelete, p) }

func (f *fakeRunner) RegistryKeyExists(key string) (bool, error) {
	return f.registry[strings.ToLower(key)], nil
}

func (f *fakeRunner) DeleteRegistryKey(key string) error {
	k := strings.ToLower(key)
	if f.sticky[k] {
		return nil
	}
	delete(f.registry, k)
	return nil
}

func (f *fakeRunner) StopService(name string) error { return nil }

func (f *fakeRunner) DeleteService(name string) error {
	delete(f.services, strings.ToLower(name))
	return nil
}

type fixture struct {
	engine    *Engine
	fs        *fsops.Fake
	runner    *fakeRunner
	registrar *RecordingRegistrar
	recorder  *events.Recorder
	clock     *clock.FakeClock
}

// newFixture wires an engine over fakes. The anchor set covers
// C:\Program Files\Acme so artifacts under it pass validation.
func newFixture(t *testing.T, elevated bool) *fixture {
	t.Helper()

	fs := fsops.NewFake()
	runner := newFakeRunner(fs)
	registrar := &RecordingRegistrar{}
	recorder := &events.Recorder{}
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	anchors := trust.NewSet()
	require.True(t, anchors.Add(`C:\Program Files\Acme`, artifact.ReasonRegistryInstallLocation))

	folders := &config.KnownFolders{
		SystemRoot:  `C:\Windows`,
		System32:    `C:\Windows\System32`,
		SysWOW64:    `C:\Windows\SysWOW64`,
		CommonFiles: `C:\Program Files\Common Files`,
		WindowsApps: `C:\Program Files\WindowsApps`,
	}
	validator := safety.NewValidator(anchors, safety.NewBlockedRoots(folders))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		engine:    NewEngine(fs, runner, registrar, validator, privilege.Static(elevated), clk, recorder, log),
		fs:        fs,
		runner:    runner,
		registrar: registrar,
		recorder:  recorder,
		clock:     clk,
	}
}

func dirArtifact(path string) *artifact.Artifact {
	return artifact.New(artifact.Directory, path, artifact.Metadata{
		Reason:     artifact.ReasonRegistryInstallLocation,
		Confidence: artifact.ConfidenceAnchor,
	})
}

func fileArtifact(path string) *artifact.Artifact {
	return artifact.New(artifact.File, path, artifact.Metadata{
		Reason:     artifact.ReasonHint,
		Confidence: artifact.ConfidenceAnchor,
	})
}

func TestRemoveStandardPass(t *testing.T) {
	f := newFixture(t, true)
	f.fs.AddFile(`C:\Program Files\Acme\Widget\widget.exe`, 4096)
	f.fs.AddFile(`C:\Users\dev\AppData\Local\Acme\log.txt`, 512)
	f.runner.registry[`hkcu\software\acme`] = true
	f.runner.services["acmesvc"] = true

	dir := dirArtifact(`C:\Program Files\Acme\Widget`)
	dir.SizeBytes = 4096
	file := fileArtifact(`C:\Users\dev\AppData\Local\Acme\log.txt`)
	file.SizeBytes = 512
	reg := artifact.New(artifact.Registry, `HKCU\Software\Acme`, artifact.Metadata{
		Reason: artifact.ReasonUninstallKey, Confidence: artifact.ConfidenceAnchor,
	})
	svc := artifact.New(artifact.Service, "AcmeSvc", artifact.Metadata{
		Reason: artifact.ReasonServiceHint, Confidence: artifact.ConfidenceAnchor,
	})

	// Deliberately out of order; the engine sorts by type.
	summary, results, err := f.engine.Remove(context.Background(), []*artifact.Artifact{svc, reg, file, dir}, false)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.RemovedCount)
	assert.Equal(t, 0, summary.FailureCount)
	assert.Equal(t, int64(4608), summary.FreedBytes)

	require.Len(t, results, 4)
	assert.Equal(t, artifact.Directory, results[0].Type)
	assert.Equal(t, artifact.File, results[1].Type)
	assert.Equal(t, artifact.Registry, results[2].Type)
	assert.Equal(t, artifact.Service, results[3].Type)

	exists, _ := f.fs.Exists(`C:\Program Files\Acme\Widget`)
	assert.False(t, exists)
	assert.Empty(t, f.runner.registry)
	assert.Empty(t, f.runner.services)

	for _, a := range []*artifact.Artifact{dir, file, reg, svc} {
		assert.True(t, a.Removed, a.Path)
	}
	assert.Len(t, f.recorder.OfType(events.TypeRemovalResult), 4)
}

func TestRemoveAlreadyAbsentCountsAsSuccess(t *testing.T) {
	f := newFixture(t, true)

	a := dirArtifact(`C:\Program Files\Acme\Gone`)
	summary, results, err := f.engine.Remove(context.Background(), []*artifact.Artifact{a}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RemovedCount)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, StrategyDelete, results[0].Strategy)
}

func TestRemoveDryRunDoesNotTouchAnything(t *testing.T) {
	f := newFixture(t, false)
	f.fs.AddFile(`C:\Program Files\Acme\Widget\widget.exe`, 100)
	f.runner.registry[`hkcu\software\acme`] = true

	dir := dirArtifact(`C:\Program Files\Acme\Widget`)
	reg := artifact.New(artifact.Registry, `HKCU\Software\Acme`, artifact.Metadata{
		Reason: artifact.ReasonUninstallKey, Confidence: artifact.ConfidenceAnchor,
	})

	summary, results, err := f.engine.Remove(context.Background(), []*artifact.Artifact{dir, reg}, true)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RemovedCount)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, StrategyDryRun, r.Strategy)
	}
	exists, _ := f.fs.Exists(`C:\Program Files\Acme\Widget`)
	assert.True(t, exists)
	assert.True(t, f.runner.registry[`hkcu\software\acme`])
}

func TestRemoveLockedFileFailsWithRetryHint(t *testing.T) {
	f := newFixture(t, true)
	f.fs.AddFile(`C:\Program Files\Acme\Widget\widget.exe`, 100)
	f.fs.Lock(`C:\Program Files\Acme\Widget\widget.exe`)

	a := fileArtifact(`C:\Program Files\Acme\Widget\widget.exe`)
	summary, results, err := f.engine.Remove(context.Background(), []*artifact.Artifact{a}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailureCount)
	assert.Equal(t, int64(0), summary.FreedBytes)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, StrategyUnlockAttributes, results[0].RetryStrategy)
	assert.False(t, a.Removed)
}

func TestForceStopsAtFirstWorkingStrategy(t *testing.T) {
	f := newFixture(t, true)
	path := `C:\Program Files\Acme\Widget\widget.exe`
	f.fs.AddFile(path, 100)
	f.fs.Lock(path)
	f.runner.unlockAt = StrategyUnlockAttributes

	a := fileArtifact(path)
	summary, results, err := f.engine.ForceRemove(context.Background(), []*artifact.Artifact{a}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RemovedCount)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, StrategyUnlockAttributes, results[0].Strategy)

	exists, _ := f.fs.Exists(path)
	assert.False(t, exists)
	assert.Len(t, f.recorder.OfType(events.TypeForceRemovalPlan), 1)
	assert.Len(t, f.recorder.OfType(events.TypeForceAttempt), 1)
}

func TestForceLockedFileFallsBackToPendingDelete(t *testing.T) {
	f := newFixture(t, true)
	path := `C:\Program Files\Acme\Widget\widget.exe`
	f.fs.AddFile(path, 100)
	f.fs.Lock(path)

	a := fileArtifact(path)
	a.SizeBytes = 100
	summary, results, err := f.engine.ForceRemove(context.Background(), []*artifact.Artifact{a}, false)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, StrategyPendingDelete, results[0].Strategy)
	assert.Equal(t, 1, summary.RemovedCount)
	assert.Equal(t, int64(100), summary.FreedBytes)

	// Every ladder rung was tried before deferring.
	assert.Equal(t, []string{StrategyUnlockAttributes, StrategyTakeOwnership, StrategyShellDelete}, f.runner.calls)
	assert.Equal(t, []string{path}, f.registrar.Paths)

	attempts := f.recorder.OfType(events.TypeForceAttempt)
	assert.Len(t, attempts, 4)
	assert.Equal(t, StrategyPendingDelete, attempts[3].Payload["strategy"])
	assert.Len(t, f.recorder.OfType(events.TypeForceRemovalPlan), 1)

	// The item stays on disk until reboot but the artifact is a success.
	exists, _ := f.fs.Exists(path)
	assert.True(t, exists)
	assert.True(t, a.Removed)
}

func TestForceSafetyDeniedIsNeverEscalated(t *testing.T) {
	f := newFixture(t, true)
	path := `C:\Users\dev\Documents\report.docx`
	f.fs.AddFile(path, 100)

	a := fileArtifact(path)
	summary, results, err := f.engine.ForceRemove(context.Background(), []*artifact.Artifact{a}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailureCount)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Err, artifact.ErrSafetyDenied.Error())

	assert.Empty(t, f.runner.calls)
	assert.Empty(t, f.registrar.Paths)
	assert.Empty(t, f.recorder.OfType(events.TypeForceAttempt))
	exists, _ := f.fs.Exists(path)
	assert.True(t, exists)
}

func TestForceRequiresElevation(t *testing.T) {
	f := newFixture(t, false)
	f.fs.AddFile(`C:\Program Files\Acme\Widget\widget.exe`, 100)

	a := fileArtifact(`C:\Program Files\Acme\Widget\widget.exe`)
	_, _, err := f.engine.ForceRemove(context.Background(), []*artifact.Artifact{a}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, artifact.ErrPrivilegeRequired))
}

func TestForceRegistryStickyKeyFails(t *testing.T) {
	f := newFixture(t, true)
	f.runner.registry[`hkcu\software\acme`] = true
	f.runner.sticky[`hkcu\software\acme`] = true

	a := artifact.New(artifact.Registry, `HKCU\Software\Acme`, artifact.Metadata{
		Reason: artifact.ReasonUninstallKey, Confidence: artifact.ConfidenceAnchor,
	})
	summary, results, err := f.engine.ForceRemove(context.Background(), []*artifact.Artifact{a}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailureCount)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Err, "still present")

	// The settle delay between delete and re-check happened.
	assert.Contains(t, f.clock.Slept(), registrySettleDelay)

	assert.Len(t, f.recorder.OfType(events.TypeForceRemovalPlan), 1)
	attempts := f.recorder.OfType(events.TypeForceAttempt)
	require.Len(t, attempts, 1)
	assert.Equal(t, StrategyRegistryDelete, attempts[0].Payload["strategy"])
}

func TestForceServiceEmitsPlanAndAttempt(t *testing.T) {
	f := newFixture(t, true)
	f.runner.services["acmesvc"] = true

	a := artifact.New(artifact.Service, "AcmeSvc", artifact.Metadata{
		Reason: artifact.ReasonServiceHint, Confidence: artifact.ConfidenceAnchor,
	})
	summary, results, err := f.engine.ForceRemove(context.Background(), []*artifact.Artifact{a}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RemovedCount)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Empty(t, f.runner.services)

	plans := f.recorder.OfType(events.TypeForceRemovalPlan)
	require.Len(t, plans, 1)
	attempts := f.recorder.OfType(events.TypeForceAttempt)
	require.Len(t, attempts, 1)
	assert.Equal(t, StrategyServiceDelete, attempts[0].Payload["strategy"])
}

func TestVerifyReversesPhantomSuccess(t *testing.T) {
	f := newFixture(t, true)
	path := `C:\Program Files\Acme\Widget`
	f.fs.AddFile(path+`\widget.exe`, 100)
	f.fs.Lock(path)
	f.fs.Lock(path + `\widget.exe`)

	// Standard pass reported success but the tree is still on disk.
	a := dirArtifact(path)
	a.SizeBytes = 2048
	a.Removed = true
	a.Strategy = StrategyDelete

	summary := &artifact.Summary{RemovedCount: 1, FreedBytes: 2048}
	reversals, err := f.engine.Verify(context.Background(), []*artifact.Artifact{a}, summary)
	require.NoError(t, err)

	require.Len(t, reversals, 1)
	assert.False(t, a.Removed)
	assert.Contains(t, a.Err, artifact.ErrVerificationFailed.Error())
	assert.Equal(t, StrategyPendingDelete, a.RetryStrategy)

	assert.Equal(t, 0, summary.RemovedCount)
	assert.Equal(t, 1, summary.FailureCount)
	assert.Equal(t, int64(0), summary.FreedBytes)

	// The extra attempt ran the full ladder but never deferred; the
	// deferred fallback is only for the force pass proper.
	assert.Empty(t, f.registrar.Paths)
	assert.Len(t, f.recorder.OfType(events.TypeVerificationReversal), 1)
}

func TestVerifyDeniedArtifactIsNeverEscalated(t *testing.T) {
	f := newFixture(t, true)
	path := `C:\Windows\System32\Acme`
	f.fs.AddFile(path+`\acme.dll`, 100)

	// A stale success on a protected path must reverse without any
	// tool ever running against it.
	a := dirArtifact(path)
	a.Removed = true
	a.Strategy = StrategyDelete

	summary := &artifact.Summary{RemovedCount: 1}
	reversals, err := f.engine.Verify(context.Background(), []*artifact.Artifact{a}, summary)
	require.NoError(t, err)

	require.Len(t, reversals, 1)
	assert.False(t, a.Removed)
	assert.Contains(t, a.Err, artifact.ErrVerificationFailed.Error())
	assert.Contains(t, a.Err, artifact.ErrSafetyDenied.Error())
	assert.Equal(t, StrategyDelete, a.Strategy)

	assert.Empty(t, f.runner.calls)
	assert.Empty(t, f.registrar.Paths)
	assert.Empty(t, f.recorder.OfType(events.TypeForceAttempt))
	assert.Equal(t, 0, summary.RemovedCount)
	assert.Equal(t, 1, summary.FailureCount)

	exists, _ := f.fs.Exists(path)
	assert.True(t, exists)
}

func TestVerifyWithoutElevationDoesNotRunTools(t *testing.T) {
	f := newFixture(t, false)
	path := `C:\Program Files\Acme\Widget`
	f.fs.AddFile(path+`\widget.exe`, 100)

	a := dirArtifact(path)
	a.Removed = true
	a.Strategy = StrategyDelete

	summary := &artifact.Summary{RemovedCount: 1}
	reversals, err := f.engine.Verify(context.Background(), []*artifact.Artifact{a}, summary)
	require.NoError(t, err)

	// Unelevated, the extra attempt degrades to a plain reversal.
	require.Len(t, reversals, 1)
	assert.False(t, a.Removed)
	assert.Contains(t, a.Err, artifact.ErrPrivilegeRequired.Error())
	assert.Equal(t, StrategyPendingDelete, a.RetryStrategy)

	assert.Empty(t, f.runner.calls)
	assert.Empty(t, f.recorder.OfType(events.TypeForceAttempt))
	assert.Equal(t, 1, summary.FailureCount)
}

func TestVerifyExtraAttemptCanStillSucceed(t *testing.T) {
	f := newFixture(t, true)
	path := `C:\Program Files\Acme\Widget`
	f.fs.AddFile(path+`\widget.exe`, 100)
	f.fs.Lock(path)
	f.runner.unlockAt = StrategyTakeOwnership

	a := dirArtifact(path)
	a.SizeBytes = 100
	a.Removed = true
	a.Strategy = StrategyDelete

	summary := &artifact.Summary{RemovedCount: 1, FreedBytes: 100}
	reversals, err := f.engine.Verify(context.Background(), []*artifact.Artifact{a}, summary)
	require.NoError(t, err)

	assert.Empty(t, reversals)
	assert.True(t, a.Removed)
	assert.Equal(t, StrategyTakeOwnership, a.Strategy)
	assert.Equal(t, 1, summary.RemovedCount)

	exists, _ := f.fs.Exists(path)
	assert.False(t, exists)
}

func TestVerifySkipsPendingDeleteArtifacts(t *testing.T) {
	f := newFixture(t, true)
	path := `C:\Program Files\Acme\Widget\widget.exe`
	f.fs.AddFile(path, 100)

	a := fileArtifact(path)
	a.Removed = true
	a.Strategy = StrategyPendingDelete

	summary := &artifact.Summary{RemovedCount: 1}
	reversals, err := f.engine.Verify(context.Background(), []*artifact.Artifact{a}, summary)
	require.NoError(t, err)

	assert.Empty(t, reversals)
	assert.True(t, a.Removed)
	assert.Equal(t, 1, summary.RemovedCount)
}
