// Package procsweep finds and terminates processes related to the target
// application.
//
// Matching is bounded by trust anchors and explicit hints; termination
// walks an ordered ladder of increasingly forceful strategies, verifying
// liveness after each attempt.
package procsweep

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Controller isolates the process liveness and termination tools so the
// sweep can run against test doubles.
type Controller interface {
	// IsAlive reports whether the pid is still running.
	IsAlive(pid int) (bool, error)

	// CloseMainWindow asks the process to close gracefully.
	CloseMainWindow(pid int) error

	// StopGraceful requests cooperative termination.
	StopGraceful(pid int) error

	// StopForced terminates the process forcefully.
	StopForced(pid int) error

	// KillUtility terminates via the external kill utility.
	KillUtility(pid int) error

	// ManagementTerminate terminates via the management interface.
	ManagementTerminate(pid int) error
}

// ExecController implements Controller by shelling out to the native
// tools.
type ExecController struct{}

// NewExecController creates the production controller.
func NewExecController() *ExecController {
	return &ExecController{}
}

// IsAlive checks the tasklist output for the pid.
func (c *ExecController) IsAlive(pid int) (bool, error) {
	out, err := exec.Command("tasklist", "/FI", "PID eq "+strconv.Itoa(pid), "/NH").Output()
	if err != nil {
		return false, fmt.Errorf("tasklist failed: %w", err)
	}
	// tasklist prints an INFO line instead of failing when no task matches.
	return containsPID(string(out), pid), nil
}

// CloseMainWindow sends a window-close request via taskkill without /F.
func (c *ExecController) CloseMainWindow(pid int) error {
	return run("taskkill", "/PID", strconv.Itoa(pid))
}

// StopGraceful requests cooperative termination including child processes.
func (c *ExecController) StopGraceful(pid int) error {
	return run("taskkill", "/PID", strconv.Itoa(pid), "/T")
}

// StopForced terminates the process tree forcefully.
func (c *ExecController) StopForced(pid int) error {
	return run("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F")
}

// KillUtility invokes the external kill utility.
func (c *ExecController) KillUtility(pid int) error {
	return run("pskill", "-t", strconv.Itoa(pid))
}

// ManagementTerminate deletes the process through the management
// interface.
func (c *ExecController) ManagementTerminate(pid int) error {
	return run("wmic", "process", "where", "ProcessId="+strconv.Itoa(pid), "delete")
}

func run(name string, args ...string) error {
	if err := exec.Command(name, args...).Run(); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

func containsPID(out string, pid int) bool {
	want := strconv.Itoa(pid)
	for i, f := range strings.Fields(out) {
		// The PID column follows the image name column.
		if f == want && i > 0 {
			return true
		}
	}
	return false
}
