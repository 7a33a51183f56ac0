package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FolderRegistry is a single JSON array of folder names, replaced wholesale
// on save.
type FolderRegistry struct {
	path string
}

func NewFolderRegistry(dir string) *FolderRegistry {
	return &FolderRegistry{path: filepath.Join(dir, "folders.json")}
}

func (r *FolderRegistry) Load() []string {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil
	}
	return names
}

// Save trims, dedupes, and sorts the names case-insensitively before
// writing.
func (r *FolderRegistry) Save(names []string) ([]string, error) {
	seen := map[string]bool{}
	var cleaned []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		cleaned = append(cleaned, name)
	}
	sort.Slice(cleaned, func(i, j int) bool {
		return strings.ToLower(cleaned[i]) < strings.ToLower(cleaned[j])
	})
	if cleaned == nil {
		cleaned = []string{}
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return nil, err
	}
	data, err := json.Marshal(cleaned)
	if err != nil {
		return nil, err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return nil, err
	}
	return cleaned, nil
}
