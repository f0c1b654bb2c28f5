package app

// ProcessRecord is a point-in-time view of one running process.
type ProcessRecord struct {
	// PID is the process identifier.
	PID int

	// Name is the image name, e.g. "widget.exe".
	Name string

	// Path is the full image path, empty when the collector could not
	// read it.
	Path string
}

// ServiceRecord is a point-in-time view of one installed service.
type ServiceRecord struct {
	// Name is the service key name.
	Name string

	// DisplayName is the human-readable name.
	DisplayName string

	// BinaryPath is the service binary path.
	BinaryPath string

	// State is the reported state, e.g. "Running" or "Stopped".
	State string
}

// Snapshot is a point-in-time view of processes and services, supplied by
// an external collector. The engine never refreshes it implicitly.
type Snapshot struct {
	Processes []ProcessRecord
	Services  []ServiceRecord
}

// SnapshotProvider re-enumerates OS state between sweep passes.
type SnapshotProvider interface {
	// Snapshot returns a fresh point-in-time process/service view.
	Snapshot() (*Snapshot, error)
}
