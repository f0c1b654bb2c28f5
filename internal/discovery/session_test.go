package discovery

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"appsweep/internal/app"
	"appsweep/internal/artifact"
	"appsweep/internal/clock"
	"appsweep/internal/config"
	"appsweep/internal/events"
	"appsweep/internal/fsops"
	"appsweep/internal/safety"
)

func testFolders() *config.KnownFolders {
	return &config.KnownFolders{
		SystemRoot:            `C:\Windows`,
		System32:              `C:\Windows\System32`,
		SysWOW64:              `C:\Windows\SysWOW64`,
		ProgramFiles:          `C:\Program Files`,
		ProgramFilesX86:       `C:\Program Files (x86)`,
		CommonFiles:           `C:\Program Files\Common Files`,
		CommonFilesX86:        `C:\Program Files (x86)\Common Files`,
		WindowsApps:           `C:\Program Files\WindowsApps`,
		LocalAppData:          `C:\Users\alice\AppData\Local`,
		RoamingAppData:        `C:\Users\alice\AppData\Roaming`,
		LocalLow:              `C:\Users\alice\AppData\LocalLow`,
		Packages:              `C:\Users\alice\AppData\Local\Packages`,
		ProgramData:           `C:\ProgramData`,
		StartMenuPrograms:     `C:\ProgramData\Microsoft\Windows\Start Menu\Programs`,
		UserStartMenuPrograms: `C:\Users\alice\AppData\Roaming\Microsoft\Windows\Start Menu\Programs`,
		PackageCache:          `C:\ProgramData\Package Cache`,
	}
}

func newTestEngine(fs *fsops.Fake, shortcuts ShortcutResolver) (*Engine, *events.Recorder) {
	folders := testFolders()
	rec := &events.Recorder{}
	if shortcuts == nil {
		shortcuts = StaticShortcutResolver{}
	}
	eng := NewEngine(
		folders,
		fs,
		DescriptorCollector{},
		shortcuts,
		safety.NewBlockedRoots(folders),
		rec,
		clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return eng, rec
}

func paths(artifacts []*artifact.Artifact) []string {
	var out []string
	for _, a := range artifacts {
		out = append(out, string(a.Type)+" "+a.Path)
	}
	return out
}

func find(artifacts []*artifact.Artifact, path string) *artifact.Artifact {
	for _, a := range artifacts {
		if strings.EqualFold(a.Path, path) {
			return a
		}
	}
	return nil
}

func TestDiscoverInstallLocationOnly(t *testing.T) {
	fs := fsops.NewFake().
		AddDir(`C:\Program Files\Acme\Widget`).
		AddDir(`C:\Program Files\OtherVendor Widget`).
		AddFile(`C:\Program Files\Acme\Widget\widget.exe`, 1000)

	d := &app.Descriptor{
		Name:     "Acme Widget",
		Registry: app.RegistryHints{InstallLocation: `C:\Program Files\Acme\Widget`},
	}

	eng, _ := newTestEngine(fs, nil)
	report, anchors, err := eng.Discover(d, &app.Snapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	install := find(report.Artifacts, `C:\Program Files\Acme\Widget`)
	if install == nil {
		t.Fatalf("install root artifact missing, got %v", paths(report.Artifacts))
	}
	if install.Metadata.Confidence != artifact.ConfidenceAnchor || !install.Selected {
		t.Errorf("install root should be anchor-confidence and pre-selected: %+v", install)
	}
	if install.SizeBytes != 1000 {
		t.Errorf("install root size = %d, want 1000", install.SizeBytes)
	}

	// A sibling sharing the "widget" token must not be proposed: scans
	// never leave anchored territory.
	if got := find(report.Artifacts, `C:\Program Files\OtherVendor Widget`); got != nil {
		t.Errorf("scan escaped the anchor: %+v", got)
	}
	if anchors.Covers(`C:\Program Files\OtherVendor Widget`) {
		t.Error("sibling must not be anchored")
	}
}

func TestDiscoverIsDeterministic(t *testing.T) {
	fs := fsops.NewFake().
		AddDir(`C:\Program Files\Acme\Widget\plugins`).
		AddDir(`C:\Program Files\Acme\Widget\WidgetData`).
		AddFile(`C:\Program Files\Acme\Widget\widget.exe`, 10)

	d := &app.Descriptor{
		Name: "Acme Widget",
		Registry: app.RegistryHints{
			InstallLocation: `C:\Program Files\Acme\Widget`,
			UninstallKeys:   []string{`HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall\AcmeWidget`},
		},
		ServiceHints: []string{"AcmeWidgetSvc"},
	}

	eng, _ := newTestEngine(fs, nil)
	first, _, err := eng.Discover(d, &app.Snapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, err := eng.Discover(d, &app.Snapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(paths(first.Artifacts), paths(second.Artifacts)); diff != "" {
		t.Errorf("discovery not deterministic (-first +second):\n%s", diff)
	}
}

func TestDiscoverSeeds(t *testing.T) {
	fs := fsops.NewFake().AddDir(`C:\ProgramData\Acme\Widget`)

	d := &app.Descriptor{
		Name: "Acme Widget",
		Registry: app.RegistryHints{
			UninstallKeys: []string{`HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall\AcmeWidget`},
		},
		ArtifactHints: []string{`C:\ProgramData\Acme\Widget`},
		ServiceHints:  []string{"AcmeWidgetSvc"},
	}

	eng, _ := newTestEngine(fs, nil)
	report, anchors, err := eng.Discover(d, &app.Snapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a := find(report.Artifacts, `HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall\AcmeWidget`); a == nil {
		t.Error("uninstall key seed missing")
	} else if a.Metadata.Reason != artifact.ReasonUninstallKey {
		t.Errorf("uninstall key reason = %s", a.Metadata.Reason)
	}

	if a := find(report.Artifacts, "AcmeWidgetSvc"); a == nil {
		t.Error("service seed missing")
	} else if a.Type != artifact.Service {
		t.Errorf("service seed type = %s", a.Type)
	}

	// The hint is anchor-eligible and must have extended the anchors.
	if !anchors.Covers(`C:\ProgramData\Acme\Widget\logs`) {
		t.Error("artifact hint should extend the anchor set")
	}
}

func TestDiscoverHeuristicScan(t *testing.T) {
	fs := fsops.NewFake().
		AddDir(`C:\Users\alice\AppData\Local\AcmeWidget\cache`).
		AddDir(`C:\Users\alice\AppData\Local\Unrelated`)

	d := &app.Descriptor{
		Name:          "Acme Widget",
		ArtifactHints: []string{`C:\Users\alice\AppData\Local\AcmeWidget`},
	}

	eng, _ := newTestEngine(fs, nil)
	report, _, err := eng.Discover(d, &app.Snapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "cache" holds no token, but the anchor dir itself is in the list
	// via the hint seed; the unrelated sibling is untouched.
	if a := find(report.Artifacts, `C:\Users\alice\AppData\Local\Unrelated`); a != nil {
		t.Errorf("unrelated sibling proposed: %+v", a)
	}

	// A token-named child inside the anchor is found heuristically.
	fs.AddDir(`C:\Users\alice\AppData\Local\AcmeWidget\acmewidget-updates`)
	report, _, err = eng.Discover(d, &app.Snapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := find(report.Artifacts, `C:\Users\alice\AppData\Local\AcmeWidget\acmewidget-updates`)
	if h == nil {
		t.Fatalf("heuristic child missing, got %v", paths(report.Artifacts))
	}
	if h.Metadata.Confidence != artifact.ConfidenceHeuristic {
		t.Errorf("confidence = %s, want heuristic", h.Metadata.Confidence)
	}
	if h.Selected {
		t.Error("heuristic candidates must not be pre-selected")
	}
}

func TestDiscoverScanBudget(t *testing.T) {
	fs := fsops.NewFake()
	anchor := `C:\Users\alice\AppData\Local\AcmeWidget`
	fs.AddDir(anchor)
	// Ten token-matching children, but the LocalAppData budget is six.
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		fs.AddDir(anchor + `\acmewidget-` + name)
	}

	d := &app.Descriptor{Name: "Acme Widget", ArtifactHints: []string{anchor}}

	eng, _ := newTestEngine(fs, nil)
	report, _, err := eng.Discover(d, &app.Snapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var heuristic int
	for _, a := range report.Artifacts {
		if a.Metadata.Confidence == artifact.ConfidenceHeuristic {
			heuristic++
		}
	}
	if heuristic != 6 {
		t.Errorf("heuristic matches = %d, want 6 (LocalAppData budget)", heuristic)
	}

	var exhausted bool
	for _, detail := range report.Details {
		if strings.Contains(detail, "budget exhausted") {
			exhausted = true
		}
	}
	if !exhausted {
		t.Error("expected a budget-exhausted detail line")
	}
}

func TestDiscoverProcessImageDirs(t *testing.T) {
	fs := fsops.NewFake().
		AddDir(`C:\Program Files\Acme\Widget\bin`)

	d := &app.Descriptor{
		Name:     "Acme Widget",
		Registry: app.RegistryHints{InstallLocation: `C:\Program Files\Acme\Widget`},
		ProcessHints: []string{
			"stray.exe",
		},
	}
	snapshot := &app.Snapshot{Processes: []app.ProcessRecord{
		{PID: 1, Name: "widget.exe", Path: `C:\Program Files\Acme\Widget\bin\widget.exe`},
		{PID: 2, Name: "stray.exe", Path: `C:\Tools\stray.exe`},
	}}

	eng, _ := newTestEngine(fs, nil)
	report, _, err := eng.Discover(d, snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a := find(report.Artifacts, `C:\Program Files\Acme\Widget\bin`); a == nil {
		t.Error("anchored process image dir missing")
	} else if a.Metadata.Reason != artifact.ReasonProcessImage {
		t.Errorf("reason = %s", a.Metadata.Reason)
	}

	// The stray process matched by name hint must not contribute its
	// directory: process matches never expand trust.
	if a := find(report.Artifacts, `C:\Tools`); a != nil {
		t.Errorf("unanchored process image dir proposed: %+v", a)
	}
}

func TestDiscoverShortcuts(t *testing.T) {
	folders := testFolders()
	lnkDir := folders.StartMenuPrograms + `\Acme`
	goodLnk := lnkDir + `\Acme Widget.lnk`
	strayLnk := lnkDir + `\Acme Widget Docs.lnk`

	fs := fsops.NewFake().
		AddDir(`C:\Program Files\Acme\Widget`).
		AddFile(`C:\Program Files\Acme\Widget\widget.exe`, 500).
		AddFile(goodLnk, 1).
		AddFile(strayLnk, 1)

	shortcuts := StaticShortcutResolver{
		goodLnk:  `C:\Program Files\Acme\Widget\widget.exe`,
		strayLnk: `C:\Other\docs\manual.pdf`,
	}

	d := &app.Descriptor{
		Name:     "Acme Widget",
		Registry: app.RegistryHints{InstallLocation: `C:\Program Files\Acme\Widget`},
	}

	eng, _ := newTestEngine(fs, shortcuts)
	report, _, err := eng.Discover(d, &app.Snapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a := find(report.Artifacts, goodLnk); a == nil {
		t.Errorf("anchored shortcut missing, got %v", paths(report.Artifacts))
	} else if a.Metadata.Reason != artifact.ReasonShortcutMatch {
		t.Errorf("shortcut reason = %s", a.Metadata.Reason)
	}
	if a := find(report.Artifacts, `C:\Program Files\Acme\Widget\widget.exe`); a == nil {
		t.Error("shortcut target missing")
	}

	// The shortcut whose target is outside every anchor is dropped.
	if a := find(report.Artifacts, strayLnk); a != nil {
		t.Errorf("unanchored shortcut kept: %+v", a)
	}
}

func TestDiscoverNothingAuthoritative(t *testing.T) {
	fs := fsops.NewFake().
		AddDir(`C:\Program Files\Mystery`)

	d := &app.Descriptor{Name: "Mystery App"}

	eng, rec := newTestEngine(fs, nil)
	report, anchors, err := eng.Discover(d, &app.Snapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Artifacts) != 0 {
		t.Errorf("expected no artifacts, got %v", paths(report.Artifacts))
	}
	if !anchors.Empty() {
		t.Errorf("expected no anchors, got %+v", anchors.Anchors())
	}
	if len(rec.OfType(events.TypeAnchorResolved)) != 0 {
		t.Error("no anchor events expected")
	}

	var disabled bool
	for _, detail := range report.Details {
		if strings.Contains(detail, "heuristic scanning disabled") {
			disabled = true
		}
	}
	if !disabled {
		t.Error("expected heuristic-disabled detail")
	}
}
