package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// EntryStore persists index entries as one flat JSON list on local disk.
type EntryStore struct {
	path string
	mu   sync.Mutex
}

func New(path string) (*EntryStore, error) {
	if path == "" {
		path = "./data/index.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &EntryStore{path: path}, nil
}

// Load returns no entries when the file does not exist yet.
func (s *EntryStore) Load(_ context.Context) ([]domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}
	var entries []domain.IndexEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode index file: %w", err)
	}
	return entries, nil
}

// Save writes to a temp file and renames it over the old one.
func (s *EntryStore) Save(_ context.Context, entries []domain.IndexEntry) error {
	if entries == nil {
		entries = []domain.IndexEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode index file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(filepath.Dir(s.path), ".index-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		_ = os.Remove(tmp)
	}()

	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}
