// Package config resolves the Windows known folders the engine works
// against.
//
// Folders are resolved once per run from environment variables with static
// fallbacks, so the whole run sees one consistent view of the machine and
// tests can construct arbitrary layouts.
package config

import (
	"os"

	"appsweep/internal/winpath"
)

// KnownFolders contains the resolved filesystem roots used for trust
// anchoring, blocked-root derivation, and heuristic scan scoping.
type KnownFolders struct {
	// SystemRoot is the Windows directory (default: C:\Windows)
	SystemRoot string

	// System32 is the system binaries directory
	System32 string

	// SysWOW64 is the 32-bit system binaries directory on 64-bit hosts
	SysWOW64 string

	// ProgramFiles is the 64-bit application root
	ProgramFiles string

	// ProgramFilesX86 is the 32-bit application root
	ProgramFilesX86 string

	// CommonFiles is Program Files\Common Files
	CommonFiles string

	// CommonFilesX86 is the x86 equivalent of CommonFiles
	CommonFilesX86 string

	// WindowsApps is the packaged-app payload root under Program Files
	WindowsApps string

	// LocalAppData is the per-user local application data root
	LocalAppData string

	// RoamingAppData is the per-user roaming application data root
	RoamingAppData string

	// LocalLow is the low-integrity application data root
	LocalLow string

	// Packages is LocalAppData\Packages (package-family data)
	Packages string

	// ProgramData is the machine-wide application data root
	ProgramData string

	// StartMenuPrograms is the machine-wide Start Menu programs directory
	StartMenuPrograms string

	// UserStartMenuPrograms is the per-user Start Menu programs directory
	UserStartMenuPrograms string

	// PackageCache is ProgramData\Package Cache (installer payload cache)
	PackageCache string
}

// DefaultFolders resolves known folders from the environment, falling back
// to the conventional C:\ locations when a variable is unset.
func DefaultFolders() *KnownFolders {
	systemRoot := envOr("SystemRoot", `C:\Windows`)
	programFiles := envOr("ProgramFiles", `C:\Program Files`)
	programFilesX86 := envOr("ProgramFiles(x86)", `C:\Program Files (x86)`)
	localAppData := envOr("LocalAppData", `C:\Users\Default\AppData\Local`)
	roaming := envOr("AppData", `C:\Users\Default\AppData\Roaming`)
	programData := envOr("ProgramData", `C:\ProgramData`)

	return &KnownFolders{
		SystemRoot:            winpath.Normalize(systemRoot),
		System32:              winpath.Join(systemRoot, "System32"),
		SysWOW64:              winpath.Join(systemRoot, "SysWOW64"),
		ProgramFiles:          winpath.Normalize(programFiles),
		ProgramFilesX86:       winpath.Normalize(programFilesX86),
		CommonFiles:           envOr("CommonProgramFiles", winpath.Join(programFiles, "Common Files")),
		CommonFilesX86:        envOr("CommonProgramFiles(x86)", winpath.Join(programFilesX86, "Common Files")),
		WindowsApps:           winpath.Join(programFiles, "WindowsApps"),
		LocalAppData:          winpath.Normalize(localAppData),
		RoamingAppData:        winpath.Normalize(roaming),
		LocalLow:              winpath.Join(winpath.Dir(localAppData), "LocalLow"),
		Packages:              winpath.Join(localAppData, "Packages"),
		ProgramData:           winpath.Normalize(programData),
		StartMenuPrograms:     winpath.Join(programData, `Microsoft\Windows\Start Menu\Programs`),
		UserStartMenuPrograms: winpath.Join(roaming, `Microsoft\Windows\Start Menu\Programs`),
		PackageCache:          winpath.Join(programData, "Package Cache"),
	}
}

// ScanRoots returns the parent roots heuristic scans are allowed to touch,
// in a fixed order so discovery output is deterministic.
func (f *KnownFolders) ScanRoots() []string {
	return []string{
		f.ProgramFiles,
		f.ProgramFilesX86,
		f.LocalAppData,
		f.RoamingAppData,
		f.LocalLow,
		f.StartMenuPrograms,
		f.PackageCache,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return winpath.Normalize(v)
	}
	return winpath.Normalize(fallback)
}
