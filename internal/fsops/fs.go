// Package fsops provides the filesystem abstraction the engine reads and
// deletes through.
//
// All filesystem access in appsweep goes through the FS interface so
// discovery and removal can be exercised against fabricated machine
// layouts. The real implementation is a thin wrapper over the os package;
// the Fake implementation holds a case-insensitive in-memory tree keyed by
// normalized Windows paths.
package fsops

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"appsweep/internal/winpath"
)

// Entry is one directory child.
type Entry struct {
	// Name is the base name of the child.
	Name string

	// IsDir reports whether the child is a directory.
	IsDir bool
}

// FS is the filesystem surface the engine depends on.
type FS interface {
	// Exists checks if a path exists.
	Exists(path string) (bool, error)

	// IsDir reports whether the path exists and is a directory.
	IsDir(path string) (bool, error)

	// ReadDir lists the children of a directory, sorted by name.
	ReadDir(path string) ([]Entry, error)

	// FileSize returns the size of a file in bytes.
	FileSize(path string) (int64, error)

	// TreeSize returns the total size of all files under a directory.
	TreeSize(path string) (int64, error)

	// Remove removes a file or empty directory.
	Remove(path string) error

	// RemoveAll removes a path and all its contents.
	RemoveAll(path string) error
}

// RealFS implements FS using the os package.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

// Exists checks if a path exists.
func (fs *RealFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// IsDir reports whether the path exists and is a directory.
func (fs *RealFS) IsDir(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// ReadDir lists the children of a directory, sorted by name.
func (fs *RealFS) ReadDir(path string) ([]Entry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

// FileSize returns the size of a file in bytes.
func (fs *RealFS) FileSize(path string) (int64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// TreeSize returns the total size of all files under a directory.
// Unreadable children are skipped; a partial size beats no size.
func (fs *RealFS) TreeSize(path string) (int64, error) {
	var total int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Remove removes a file or empty directory.
func (fs *RealFS) Remove(path string) error {
	return os.Remove(path)
}

// RemoveAll removes a path and all its contents.
func (fs *RealFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Fake is an in-memory FS keyed by lowercased normalized Windows paths.
// It is the test double for every engine that reads or deletes files.
type Fake struct {
	dirs      map[string]string // lower path -> original path
	files     map[string]int64  // lower path -> size
	fileNames map[string]string // lower path -> original path

	// FailRemove lists lower-cased paths whose removal must fail,
	// simulating locks.
	FailRemove map[string]bool
}

// NewFake creates an empty fake filesystem.
func NewFake() *Fake {
	return &Fake{
		dirs:       make(map[string]string),
		files:      make(map[string]int64),
		fileNames:  make(map[string]string),
		FailRemove: make(map[string]bool),
	}
}

// AddDir records a directory and all its parents.
func (f *Fake) AddDir(path string) *Fake {
	p := winpath.Normalize(path)
	for {
		f.dirs[strings.ToLower(p)] = p
		parent := winpath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	return f
}

// AddFile records a file of the given size, creating parent directories.
func (f *Fake) AddFile(path string, size int64) *Fake {
	p := winpath.Normalize(path)
	f.files[strings.ToLower(p)] = size
	f.fileNames[strings.ToLower(p)] = p
	f.AddDir(winpath.Dir(p))
	return f
}

// Lock marks a path so Remove/RemoveAll fail for it.
func (f *Fake) Lock(path string) *Fake {
	f.FailRemove[strings.ToLower(winpath.Normalize(path))] = true
	return f
}

// Unlock clears a lock set with Lock.
func (f *Fake) Unlock(path string) *Fake {
	delete(f.FailRemove, strings.ToLower(winpath.Normalize(path)))
	return f
}

// Exists checks if a path exists.
func (f *Fake) Exists(path string) (bool, error) {
	key := strings.ToLower(winpath.Normalize(path))
	if _, ok := f.dirs[key]; ok {
		return true, nil
	}
	_, ok := f.files[key]
	return ok, nil
}

// IsDir reports whether the path exists and is a directory.
func (f *Fake) IsDir(path string) (bool, error) {
	_, ok := f.dirs[strings.ToLower(winpath.Normalize(path))]
	return ok, nil
}

// ReadDir lists the children of a directory, sorted by name.
func (f *Fake) ReadDir(path string) ([]Entry, error) {
	key := strings.ToLower(winpath.Normalize(path))
	if _, ok := f.dirs[key]; !ok {
		return nil, fmt.Errorf("directory not found: %s", path)
	}

	prefix := key + `\`
	if strings.HasSuffix(key, `\`) {
		prefix = key
	}

	seen := make(map[string]Entry)
	collect := func(lower, original string, isDir bool) {
		rest := strings.TrimPrefix(lower, prefix)
		if rest == lower || rest == "" {
			return
		}
		if strings.Contains(rest, `\`) {
			return
		}
		name := winpath.Base(original)
		seen[strings.ToLower(name)] = Entry{Name: name, IsDir: isDir}
	}
	for lower, original := range f.dirs {
		collect(lower, original, true)
	}
	for lower := range f.files {
		collect(lower, f.fileNames[lower], false)
	}

	out := make([]Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

// FileSize returns the size of a file in bytes.
func (f *Fake) FileSize(path string) (int64, error) {
	key := strings.ToLower(winpath.Normalize(path))
	size, ok := f.files[key]
	if !ok {
		return 0, fmt.Errorf("file not found: %s", path)
	}
	return size, nil
}

// TreeSize returns the total size of all files under a directory.
func (f *Fake) TreeSize(path string) (int64, error) {
	key := strings.ToLower(winpath.Normalize(path))
	var total int64
	for lower, size := range f.files {
		if lower == key || strings.HasPrefix(lower, key+`\`) {
			total += size
		}
	}
	return total, nil
}

// Remove removes a file or empty directory.
func (f *Fake) Remove(path string) error {
	return f.RemoveAll(path)
}

// RemoveAll removes a path and all its contents.
func (f *Fake) RemoveAll(path string) error {
	key := strings.ToLower(winpath.Normalize(path))
	if f.FailRemove[key] {
		return fmt.Errorf("access denied: %s", path)
	}
	for lower := range f.FailRemove {
		if strings.HasPrefix(lower, key+`\`) {
			return fmt.Errorf("access denied: %s", path)
		}
	}
	delete(f.files, key)
	delete(f.fileNames, key)
	delete(f.dirs, key)
	for lower := range f.files {
		if strings.HasPrefix(lower, key+`\`) {
			delete(f.files, lower)
			delete(f.fileNames, lower)
		}
	}
	for lower := range f.dirs {
		if strings.HasPrefix(lower, key+`\`) {
			delete(f.dirs, lower)
		}
	}
	return nil
}
