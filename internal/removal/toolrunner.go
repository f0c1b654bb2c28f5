// Package removal deletes approved artifacts, escalating through
// increasingly invasive strategies when plain deletion fails.
//
// External tools are reached through the SystemToolRunner interface, one
// method per tool, so the escalation ladders can run against test
// doubles. The production implementation shells out and maps exit codes
// onto the engine's error taxonomy.
package removal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// SystemToolRunner is the external-tool surface of the removal engines.
type SystemToolRunner interface {
	// ClearAttributes strips read-only/system/hidden attributes
	// recursively.
	ClearAttributes(path string) error

	// TakeOwnership takes ownership of the tree and grants the
	// administrators group full control.
	TakeOwnership(path string) error

	// MirrorEmptyDir mirrors an empty directory over the target,
	// purging its contents.
	MirrorEmptyDir(path string) error

	// ShellRemoveDir removes a directory tree via the shell.
	ShellRemoveDir(path string) error

	// ShellDeleteFile deletes a file via the shell.
	ShellDeleteFile(path string) error

	// RegistryKeyExists checks whether a registry key is present.
	RegistryKeyExists(key string) (bool, error)

	// DeleteRegistryKey deletes a registry key recursively.
	DeleteRegistryKey(key string) error

	// StopService stops a service; an already-stopped service is not
	// an error.
	StopService(name string) error

	// DeleteService deletes a service; a service that does not exist
	// is not an error.
	DeleteService(name string) error
}

// Service-control exit codes the runner must translate.
const (
	scExitServiceNotFound   = 1060
	scExitServiceNotStarted = 1062
)

// ExecToolRunner is the production SystemToolRunner.
type ExecToolRunner struct{}

// NewExecToolRunner creates the production tool runner.
func NewExecToolRunner() *ExecToolRunner {
	return &ExecToolRunner{}
}

// ClearAttributes strips read-only/system/hidden attributes recursively.
func (r *ExecToolRunner) ClearAttributes(path string) error {
	return runTool("attrib", "-R", "-S", "-H", path, "/S", "/D")
}

// TakeOwnership takes ownership and grants the administrators group
// (well-known SID, locale-independent) full control.
func (r *ExecToolRunner) TakeOwnership(path string) error {
	if err := runTool("takeown", "/F", path, "/R", "/D", "Y"); err != nil {
		return err
	}
	return runTool("icacls", path, "/grant", "*S-1-5-32-544:F", "/T", "/C", "/Q")
}

// MirrorEmptyDir mirrors a fresh empty directory over the target.
// Robocopy exit codes below 8 indicate success.
func (r *ExecToolRunner) MirrorEmptyDir(path string) error {
	empty, err := os.MkdirTemp("", "appsweep-purge-")
	if err != nil {
		return fmt.Errorf("failed to create purge source: %w", err)
	}
	defer os.RemoveAll(empty)

	err = exec.Command("robocopy", empty, path, "/MIR", "/NJH", "/NJS", "/NP").Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() < 8 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("robocopy mirror failed: %w", err)
	}
	return nil
}

// ShellRemoveDir removes a directory tree via cmd's rd.
func (r *ExecToolRunner) ShellRemoveDir(path string) error {
	return runTool("cmd", "/c", "rd", "/s", "/q", path)
}

// ShellDeleteFile deletes a file via cmd's del.
func (r *ExecToolRunner) ShellDeleteFile(path string) error {
	return runTool("cmd", "/c", "del", "/f", "/q", path)
}

// RegistryKeyExists checks key presence via reg query. Exit code 1 means
// the key is absent; anything else is a tool failure.
func (r *ExecToolRunner) RegistryKeyExists(key string) (bool, error) {
	err := exec.Command("reg", "query", key).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("reg query failed: %w", err)
}

// DeleteRegistryKey deletes the key recursively.
func (r *ExecToolRunner) DeleteRegistryKey(key string) error {
	return runTool("reg", "delete", key, "/f")
}

// StopService stops the service; "not started" is not an error.
func (r *ExecToolRunner) StopService(name string) error {
	err := exec.Command("sc", "stop", name).Run()
	if err == nil || exitCodeIs(err, scExitServiceNotStarted) || exitCodeIs(err, scExitServiceNotFound) {
		return nil
	}
	return fmt.Errorf("sc stop failed: %w", err)
}

// DeleteService deletes the service; "does not exist" is not an error.
func (r *ExecToolRunner) DeleteService(name string) error {
	err := exec.Command("sc", "delete", name).Run()
	if err == nil || exitCodeIs(err, scExitServiceNotFound) {
		return nil
	}
	return fmt.Errorf("sc delete failed: %w", err)
}

func runTool(name string, args ...string) error {
	if err := exec.Command(name, args...).Run(); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

func exitCodeIs(err error, code int) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == code
}
