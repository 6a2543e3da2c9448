package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	recordsFile = "indexes.json"
)

// IndexRecord remembers how an index was built so later runs can detect a
// different embedding model being used against it.
type IndexRecord struct {
	// Name is the index name.
	Name string `json:"name"`

	// Model is the identity of the embedding model the index was reset with.
	Model string `json:"model"`

	Dimensions int    `json:"dimensions"`
	Metric     string `json:"metric"`

	// Store is the vector store provider holding the index.
	Store string `json:"store"`

	ResetAt time.Time `json:"reset_at"`
}

// LoadIndexRecord loads the record for the named index from
// .simsearch/indexes.json. Returns nil, nil if no record exists.
func (m *Manager) LoadIndexRecord(overrideDir, name string) (*IndexRecord, error) {
	records, err := m.loadRecords(overrideDir)
	if err != nil {
		return nil, err
	}
	rec, ok := records[name]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// SaveIndexRecord stores the record, replacing any previous one for the
// same index.
func (m *Manager) SaveIndexRecord(overrideDir string, rec *IndexRecord) error {
	if rec == nil {
		return errors.New("cannot save nil index record")
	}

	records, err := m.loadRecords(overrideDir)
	if err != nil {
		return err
	}
	records[rec.Name] = *rec
	return m.saveRecords(overrideDir, records)
}

// ClearIndexRecord removes the record for the named index. Returns nil if
// there is none.
func (m *Manager) ClearIndexRecord(overrideDir, name string) error {
	records, err := m.loadRecords(overrideDir)
	if err != nil {
		return err
	}
	if _, ok := records[name]; !ok {
		return nil
	}
	delete(records, name)
	return m.saveRecords(overrideDir, records)
}

func (m *Manager) recordsPath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", nil
	}
	return filepath.Join(dir, recordsFile), nil
}

func (m *Manager) loadRecords(overrideDir string) (map[string]IndexRecord, error) {
	records := map[string]IndexRecord{}

	path, err := m.recordsPath(overrideDir)
	if err != nil || path == "" {
		return records, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("reading index records: %w", err)
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing index records: %w", err)
	}
	return records, nil
}

func (m *Manager) saveRecords(overrideDir string, records map[string]IndexRecord) error {
	path, err := m.recordsPath(overrideDir)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("no simsearch directory, run simsearch init")
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index records: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing index records: %w", err)
	}
	return nil
}
