package removal

import (
	"fmt"
	"os/exec"
	"strings"
)

// DeferredDeletionRegistrar queues a path for deletion at next boot. It
// is the final rung of the filesystem escalation ladders: when nothing
// can remove a locked item now, the OS removes it before anything can
// lock it again.
type DeferredDeletionRegistrar interface {
	RegisterPendingDelete(path string) error
}

const (
	sessionManagerKey = `HKLM\SYSTEM\CurrentControlSet\Control\Session Manager`
	pendingValueName  = "PendingFileRenameOperations"
)

// RegistryRegistrar records the path in the session manager's pending
// file rename operations multi-string value.
type RegistryRegistrar struct{}

// RegisterPendingDelete appends "\??\<path>" with an empty destination,
// which the session manager interprets as delete-at-boot. Existing
// entries are preserved.
func (RegistryRegistrar) RegisterPendingDelete(path string) error {
	existing, err := queryPendingOperations()
	if err != nil {
		return err
	}
	entries := append(existing, `\??\`+path, "")

	// reg add encodes REG_MULTI_SZ entries separated by \0.
	err = exec.Command("reg", "add", sessionManagerKey,
		"/v", pendingValueName,
		"/t", "REG_MULTI_SZ",
		"/d", strings.Join(entries, `\0`),
		"/f").Run()
	if err != nil {
		return fmt.Errorf("failed to register pending delete for %s: %w", path, err)
	}
	return nil
}

// queryPendingOperations reads the current multi-string entries, if any.
func queryPendingOperations() ([]string, error) {
	out, err := exec.Command("reg", "query", sessionManagerKey, "/v", pendingValueName).Output()
	if err != nil {
		// A missing value is the common case on a clean machine.
		return nil, nil
	}
	for _, line := range strings.Split(string(out), "\n") {
		idx := strings.Index(line, "REG_MULTI_SZ")
		if idx < 0 {
			continue
		}
		data := strings.TrimSpace(line[idx+len("REG_MULTI_SZ"):])
		if data == "" {
			return nil, nil
		}
		return strings.Split(data, `\0`), nil
	}
	return nil, nil
}

// RecordingRegistrar captures registrations for tests.
type RecordingRegistrar struct {
	Paths []string

	// Err, when set, is returned from every registration.
	Err error
}

// RegisterPendingDelete records the path.
func (r *RecordingRegistrar) RegisterPendingDelete(path string) error {
	if r.Err != nil {
		return r.Err
	}
	r.Paths = append(r.Paths, path)
	return nil
}
