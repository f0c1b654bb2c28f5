package discovery

import (
	"fmt"
	"os/exec"
	"strings"
)

// ShortcutResolver reads the target path of a .lnk shortcut.
type ShortcutResolver interface {
	// ResolveTarget returns the shortcut's target path, or an error
	// when the shortcut cannot be read.
	ResolveTarget(lnkPath string) (string, error)
}

// ExecShortcutResolver resolves shortcuts through the shell COM object.
type ExecShortcutResolver struct{}

// ResolveTarget shells out to PowerShell's WScript.Shell wrapper.
func (ExecShortcutResolver) ResolveTarget(lnkPath string) (string, error) {
	script := fmt.Sprintf(
		"(New-Object -ComObject WScript.Shell).CreateShortcut(%q).TargetPath", lnkPath)
	out, err := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve shortcut %s: %w", lnkPath, err)
	}
	target := strings.TrimSpace(string(out))
	if target == "" {
		return "", fmt.Errorf("shortcut %s has no target", lnkPath)
	}
	return target, nil
}

// StaticShortcutResolver maps shortcut paths to targets for tests.
type StaticShortcutResolver map[string]string

// ResolveTarget looks up the fixed mapping, case-insensitively.
func (s StaticShortcutResolver) ResolveTarget(lnkPath string) (string, error) {
	for k, v := range s {
		if strings.EqualFold(k, lnkPath) {
			return v, nil
		}
	}
	return "", fmt.Errorf("no target for %s", lnkPath)
}
