// Package repo implements the verification store as a single JSON file.
// The whole map is held in memory and rewritten on every put, which keeps
// the on-disk format a plain reviewable document
package repo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	dom "openshelf/internal/services/verify/domain"
)

// JSON is a file backed verification store
type JSON struct {
	path string

	mu      sync.Mutex
	records map[string]dom.Verification
}

// NewJSON opens the store at path, loading any existing records.
// A missing file starts empty
func NewJSON(path string) (*JSON, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &JSON{path: path, records: make(map[string]dom.Verification)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.records); err != nil {
		return nil, err
	}
	return s, nil
}

// Put implements domain.StorePort
func (s *JSON) Put(_ context.Context, v dom.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[dom.Key(v.Source, v.ItemID)] = v
	return s.flushLocked()
}

// Get implements domain.StorePort
func (s *JSON) Get(_ context.Context, source, itemID string) (dom.Verification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[dom.Key(source, itemID)]
	return v, ok, nil
}

// Len returns the number of stored records
func (s *JSON) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *JSON) flushLocked() error {
	raw, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".part"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
