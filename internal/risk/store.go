package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"alpaca-trader/internal/errors"
)

// ParameterStore persists the risk-parameter record wholesale. A save is
// a single atomic replace of the whole record: it succeeds fully or not
// at all, never leaving a partially written record behind.
type ParameterStore interface {
	Load(ctx context.Context) (RiskParameters, error)
	Save(ctx context.Context, params RiskParameters) error
}

// FileParameterStore stores the record as one JSON file, replaced
// atomically via a temp file and rename in the same directory.
type FileParameterStore struct {
	path string
}

// NewFileParameterStore creates a file-backed parameter store.
func NewFileParameterStore(path string) *FileParameterStore {
	return &FileParameterStore{path: path}
}

// Load reads the record. A missing or unreadable file, or a record that
// does not parse, is reported as ErrConfigUnavailable.
func (s *FileParameterStore) Load(ctx context.Context) (RiskParameters, error) {
	var params RiskParameters

	data, err := os.ReadFile(s.path)
	if err != nil {
		return params, fmt.Errorf("%w: reading %s: %v", errors.ErrConfigUnavailable, s.path, err)
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("%w: parsing %s: %v", errors.ErrConfigUnavailable, s.path, err)
	}
	if params.SchemaVersion > SchemaVersion {
		return params, fmt.Errorf("%w: %s has schema version %d, this build supports %d",
			errors.ErrConfigUnavailable, s.path, params.SchemaVersion, SchemaVersion)
	}
	return params, nil
}

// Save atomically replaces the record on disk.
func (s *FileParameterStore) Save(ctx context.Context, params RiskParameters) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding parameters: %v", errors.ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", errors.ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".risk_params-*.json")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", errors.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp file: %v", errors.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing temp file: %v", errors.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", errors.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", errors.ErrPersistence, s.path, err)
	}
	return nil
}
