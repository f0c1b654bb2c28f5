// Package privilege answers whether the current process holds
// administrator rights.
//
// Elevation is requested lazily: only the destructive phases consult it,
// and a missing privilege fails that phase alone.
package privilege

import "os/exec"

// Elevation reports whether destructive operations may proceed.
type Elevation interface {
	// IsElevated reports whether the process has administrator rights.
	IsElevated() bool
}

// Probe detects elevation by running `net session`, which fails with
// "access denied" for non-elevated callers.
type Probe struct{}

// IsElevated runs the probe command.
func (Probe) IsElevated() bool {
	return exec.Command("net", "session").Run() == nil
}

// Static is a fixed answer for tests.
type Static bool

// IsElevated returns the fixed answer.
func (s Static) IsElevated() bool {
	return bool(s)
}
