// Package record implements the file-backed repo-truth store.
// Each record is one pretty-printed JSON file under truth/<kind>/<ID>.json;
// workflows are YAML under truth/workflow/<ID>.yaml.
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sotakimura/conductor/internal/domain/model/record"
)

// FileStore is the afero-backed record.Store implementation
type FileStore struct {
	fs   afero.Fs
	root string // truth directory
}

// NewFileStore creates a store rooted at the truth directory
func NewFileStore(fs afero.Fs, root string) *FileStore {
	return &FileStore{fs: fs, root: root}
}

func (s *FileStore) recordPath(kind record.Kind, id string) string {
	return filepath.Join(s.root, string(kind), id+".json")
}

func (s *FileStore) workflowPath(id string) string {
	return filepath.Join(s.root, string(record.KindWorkflow), id+".yaml")
}

// Get loads one record by kind and id
func (s *FileStore) Get(kind record.Kind, id string) (*record.Record, error) {
	data, err := afero.ReadFile(s.fs, s.recordPath(kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, record.NotFound(kind, id)
		}
		return nil, fmt.Errorf("failed to read record %s/%s: %w", kind, id, err)
	}

	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record %s/%s: %w", kind, id, err)
	}
	return &rec, nil
}

// Put writes one record, creating the kind directory as needed.
// The write goes through a temp file and rename so a reader never sees a
// half-written record.
func (s *FileStore) Put(kind record.Kind, id string, rec *record.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s/%s: %w", kind, id, err)
	}
	data = append(data, '\n')
	return s.writeAtomic(s.recordPath(kind, id), data)
}

// List returns all records of a kind sorted by id.
// A missing kind directory means an empty store, not an error.
func (s *FileStore) List(kind record.Kind) ([]*record.Record, error) {
	dir := filepath.Join(s.root, string(kind))
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}

	var records []*record.Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		rec, err := s.Get(kind, id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Delete removes one record
func (s *FileStore) Delete(kind record.Kind, id string) error {
	err := s.fs.Remove(s.recordPath(kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return record.NotFound(kind, id)
		}
		return fmt.Errorf("failed to delete record %s/%s: %w", kind, id, err)
	}
	return nil
}

// Exists reports whether a record file is present
func (s *FileStore) Exists(kind record.Kind, id string) bool {
	ok, err := afero.Exists(s.fs, s.recordPath(kind, id))
	return err == nil && ok
}

// GetWorkflow loads one workflow document
func (s *FileStore) GetWorkflow(id string) (*record.Workflow, error) {
	data, err := afero.ReadFile(s.fs, s.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, record.NotFound(record.KindWorkflow, id)
		}
		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	var wf record.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow %s: %w", id, err)
	}
	return &wf, nil
}

// PutWorkflow writes one workflow document
func (s *FileStore) PutWorkflow(wf *record.Workflow) error {
	data, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", wf.ID, err)
	}
	return s.writeAtomic(s.workflowPath(wf.ID), data)
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}
