package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"voicenotes-go/internal/types"
)

// FilesystemStore keeps one <baseID>.json per note under dir.
type FilesystemStore struct {
	dir string
}

func NewFilesystemStore(dir string) *FilesystemStore {
	return &FilesystemStore{dir: dir}
}

func (s *FilesystemStore) path(baseID string) string {
	return filepath.Join(s.dir, baseID+".json")
}

// Save writes the record atomically (temp file + rename) so a crashed write
// never leaves a truncated document.
func (s *FilesystemStore) Save(baseID string, note *types.Note) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal note %s: %w", baseID, err)
	}
	tmp := s.path(baseID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write note %s: %w", baseID, err)
	}
	return os.Rename(tmp, s.path(baseID))
}

// Load returns (nil, nil) when the note does not exist.
func (s *FilesystemStore) Load(baseID string) (*types.Note, error) {
	data, err := os.ReadFile(s.path(baseID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read note %s: %w", baseID, err)
	}
	var n types.Note
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode note %s: %w", baseID, err)
	}
	return &n, nil
}

// List returns all notes sorted by base id. Unreadable documents are
// skipped.
func (s *FilesystemStore) List() ([]*types.Note, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list notes: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	sort.Strings(names)

	var out []*types.Note
	for _, base := range names {
		n, err := s.Load(base)
		if err != nil || n == nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *FilesystemStore) Delete(baseID string) error {
	err := os.Remove(s.path(baseID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
