package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/othala/internal/checksum"
)

const recordExt = ".json"

// FS implements Provider backed by the local file system: a flat directory
// of <id>.json record files. Write records the checksum of every record it
// writes, so the file watcher can tell the engine's own write-backs apart
// from external edits without re-applying them. The mutex guards that
// registry; the persister and the watcher run on different goroutines.
type FS struct {
	root string // absolute path to the graph directory

	mu      sync.Mutex
	written map[string]string // id -> checksum of the last record written
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, written: make(map[string]string)}, nil
}

// Root returns the absolute graph directory path.
func (f *FS) Root() string {
	return f.root
}

// recordPath validates the id (plain name, no separators, no traversal) and
// returns the absolute record file path.
func (f *FS) recordPath(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("storage: id is required")
	}
	cleaned := filepath.Clean(id)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("storage: invalid id: %s", id)
	}
	abs := filepath.Join(f.root, cleaned+recordExt)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: id escapes graph root: %s", id)
	}
	return abs, nil
}

// List returns metadata for every .json record in the graph directory.
func (f *FS) List() ([]RecordMetadata, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []RecordMetadata
	for _, d := range entries {
		if d.IsDir() || !strings.HasSuffix(d.Name(), recordExt) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(f.root, d.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, RecordMetadata{
			ID:        strings.TrimSuffix(d.Name(), recordExt),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// Read returns the raw bytes of one record.
func (f *FS) Read(id string) ([]byte, error) {
	abs, err := f.recordPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", id, err)
	}
	return data, nil
}

// Write atomically persists a record: tmp file → fsync → rename.
func (f *FS) Write(id string, data []byte) error {
	abs, err := f.recordPath(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".othala-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true

	f.mu.Lock()
	f.written[id] = checksum.Sum(data)
	f.mu.Unlock()
	return nil
}

// selfWrote reports whether the last record this provider wrote for id had
// exactly this checksum.
func (f *FS) selfWrote(id, cs string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written[id] == cs
}

// Delete removes a record file.
func (f *FS) Delete(id string) error {
	abs, err := f.recordPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	f.mu.Lock()
	delete(f.written, id)
	f.mu.Unlock()
	return nil
}
