// Package report persists the outcome of cleanup runs as JSON files so a
// later audit can see what was removed, when, and why.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"appsweep/internal/artifact"
)

// Record is one persisted cleanup run.
type Record struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// App is the display name of the target application.
	App string `json:"app"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`

	// DryRun reports whether anything was actually removed.
	DryRun bool `json:"dryRun"`

	// Summary is the final tally after verification.
	Summary *artifact.Summary `json:"summary"`

	// Artifacts are the selected artifacts with their final states.
	Artifacts []*artifact.Artifact `json:"artifacts"`

	// Results are the individual attempt outcomes in order.
	Results []artifact.Result `json:"results"`
}

// Store persists run records.
type Store interface {
	// Save writes the record and returns the path it was written to.
	Save(r *Record) (string, error)

	// List returns all records, newest first.
	List() ([]*Record, error)

	// Load returns the record with the given run ID.
	// Returns os.ErrNotExist when no such run was recorded.
	Load(id string) (*Record, error)
}

// FileStore implements Store using JSON files in a single directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// DefaultDir is the per-user report location.
func DefaultDir() string {
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			base = "."
		} else {
			base = home
		}
	}
	return filepath.Join(base, "appsweep", "runs")
}

// Save writes the record atomically and returns the file path.
func (s *FileStore) Save(r *Record) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run record: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", r.StartedAt.UTC().Format("20060102-150405"), shortID(r.ID))
	path := filepath.Join(s.dir, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize run record: %w", err)
	}
	return path, nil
}

// List returns all records, newest first. Files that do not parse are
// skipped.
func (s *FileStore) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		records = append(records, &r)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// Load returns the record with the given run ID.
func (s *FileStore) Load(id string) (*Record, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, os.ErrNotExist
}

// shortID keeps filenames readable; the full ID stays in the record.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
