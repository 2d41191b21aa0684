package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/isseis/go-manifest-producer/internal/safefileio"
)

const (
	// filePermission is the permission mode for manifest files.
	filePermission = 0o600

	// dirPermission is the permission mode for the output directory.
	dirPermission = 0o750
)

// Store reads and writes the manifest files of one output directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating the directory with mode
// 0o750 if it does not exist.
func NewStore(dir string) (*Store, error) {
	info, err := os.Lstat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to access manifest directory: %w", err)
		}
		if err := os.MkdirAll(dir, dirPermission); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrOutputDirNotDirectory, dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Paths returns the manifest file paths in write order.
func (s *Store) Paths() []string {
	return []string{
		filepath.Join(s.dir, BasicInfoFile),
		filepath.Join(s.dir, FlowCallFile),
		filepath.Join(s.dir, FeatureManifestFile),
	}
}

// Save writes all three manifest files, overwriting earlier runs.
func (s *Store) Save(m *Manifest) error {
	files := []struct {
		name string
		v    any
	}{
		{BasicInfoFile, m.BasicInfo},
		{FlowCallFile, m.FlowCall},
		{FeatureManifestFile, m.Features},
	}
	for _, f := range files {
		if err := s.write(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	data = append(data, '\n')
	if err := safefileio.WriteFileOverwrite(filepath.Join(s.dir, name), data, filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Load reads all three manifest files. Every file must carry the current
// schema version and the same run ID.
func (s *Store) Load() (*Manifest, error) {
	m := &Manifest{
		BasicInfo: &BasicInfo{},
		FlowCall:  &FlowCall{},
		Features:  &FeatureManifest{},
	}
	if err := s.read(BasicInfoFile, m.BasicInfo); err != nil {
		return nil, err
	}
	if err := s.read(FlowCallFile, m.FlowCall); err != nil {
		return nil, err
	}
	if err := s.read(FeatureManifestFile, m.Features); err != nil {
		return nil, err
	}

	runID := m.BasicInfo.RunID
	if m.FlowCall.RunID != runID || m.Features.RunID != runID {
		return nil, fmt.Errorf("%w: %s, %s, %s", ErrRunIDMismatch, runID, m.FlowCall.RunID, m.Features.RunID)
	}
	return m, nil
}

type headed interface {
	header() Header
}

func (s *Store) read(name string, v headed) error {
	path := filepath.Join(s.dir, name)
	data, err := safefileio.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return &RecordCorruptedError{Path: path, Cause: err}
	}

	if got := v.header().SchemaVersion; got != CurrentSchemaVersion {
		return &SchemaVersionMismatchError{
			Path:     path,
			Expected: CurrentSchemaVersion,
			Actual:   got,
		}
	}
	return nil
}
