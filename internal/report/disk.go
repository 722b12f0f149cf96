package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DiskStore keeps each BuildResult as a JSON file in a temp directory that
// is created on first use.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore returns an empty DiskStore.
func NewDiskStore() *DiskStore {
	return &DiskStore{}
}

// NewDiskStoreAt returns a DiskStore rooted at dir. The directory must exist.
func NewDiskStoreAt(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Save writes result to <dir>/<id>.json.
func (s *DiskStore) Save(result *BuildResult) error {
	if result.ID == "" {
		return fmt.Errorf("saving result: empty id")
	}
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshalling result %s: %w", result.ID, err)
	}
	if err := writeAtomic(filepath.Join(dir, result.ID+".json"), data); err != nil {
		return fmt.Errorf("writing result %s: %w", result.ID, err)
	}
	return nil
}

// writeAtomic replaces path with data so concurrent saves of one run never
// leave an interleaved file behind.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".result-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads the result saved under runID.
func (s *DiskStore) Load(runID string) (*BuildResult, error) {
	if runID == "" || filepath.Base(runID) != runID {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, runID+".json"))
	if err != nil {
		return nil, fmt.Errorf("reading result %s: %w", runID, err)
	}
	var result BuildResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshalling result %s: %w", runID, err)
	}
	return &result, nil
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "runasm-builds-*")
	if err != nil {
		return "", fmt.Errorf("creating result directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
