package artifact

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewDefaults(t *testing.T) {
	t.Run("anchor confidence is pre-selected", func(t *testing.T) {
		a := New(Directory, `C:/Program Files/Acme/`, Metadata{
			Reason:     ReasonRegistryInstallLocation,
			Confidence: ConfidenceAnchor,
		})
		if !a.Selected {
			t.Error("anchor-confidence artifact should default selected")
		}
		if a.Path != `C:\Program Files\Acme` {
			t.Errorf("path not normalized: %q", a.Path)
		}
		if a.ID == "" {
			t.Error("artifact should get an id")
		}
	})

	t.Run("heuristic confidence is not pre-selected", func(t *testing.T) {
		a := New(Directory, `C:\ProgramData\Acme`, Metadata{
			Reason:     ReasonHeuristicScan,
			Confidence: ConfidenceHeuristic,
		})
		if a.Selected {
			t.Error("heuristic artifact should not default selected")
		}
	})

	t.Run("registry paths kept verbatim", func(t *testing.T) {
		key := `HKLM\SOFTWARE\Acme\Widget`
		a := New(Registry, key, Metadata{Reason: ReasonUninstallKey, Confidence: ConfidenceAnchor})
		if a.Path != key {
			t.Errorf("registry path altered: %q", a.Path)
		}
	})
}

func TestAnchorEligible(t *testing.T) {
	eligible := []Reason{
		ReasonInstallRoot, ReasonHint, ReasonRegistryInstallLocation,
		ReasonPackageFamilyData, ReasonWindowsAppsPayload,
	}
	for _, r := range eligible {
		if !r.AnchorEligible() {
			t.Errorf("%s should be anchor-eligible", r)
		}
	}

	ineligible := []Reason{
		ReasonHeuristicScan, ReasonShortcutMatch, ReasonProcessImage,
		ReasonUninstallKey, ReasonServiceHint, ReasonDisplayIconLocation,
	}
	for _, r := range ineligible {
		if r.AnchorEligible() {
			t.Errorf("%s should not be anchor-eligible", r)
		}
	}
}

func TestKeyIsCaseInsensitive(t *testing.T) {
	a := New(File, `C:\Acme\widget.exe`, Metadata{Confidence: ConfidenceAnchor})
	b := New(File, `c:\ACME\Widget.EXE`, Metadata{Confidence: ConfidenceAnchor})
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %q vs %q", a.Key(), b.Key())
	}
}

func TestSortForRemoval(t *testing.T) {
	mk := func(typ Type, path string) *Artifact {
		return New(typ, path, Metadata{Confidence: ConfidenceAnchor})
	}
	artifacts := []*Artifact{
		mk(Service, "AcmeSvc"),
		mk(File, `C:\Acme\b.dll`),
		mk(Registry, `HKLM\SOFTWARE\Acme`),
		mk(Directory, `C:\Acme\sub`),
		mk(File, `C:\Acme\a.dll`),
		mk(Directory, `C:\Acme`),
	}

	SortForRemoval(artifacts)

	var got []string
	for _, a := range artifacts {
		got = append(got, string(a.Type)+" "+a.Path)
	}
	want := []string{
		`Directory C:\Acme`,
		`Directory C:\Acme\sub`,
		`File C:\Acme\a.dll`,
		`File C:\Acme\b.dll`,
		`Registry HKLM\SOFTWARE\Acme`,
		`Service AcmeSvc`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("removal order mismatch (-want +got):\n%s", diff)
	}
}
