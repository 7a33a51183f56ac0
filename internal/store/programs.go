package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voicenotes-go/internal/types"
)

var allowedDomains = map[string]bool{
	"programming": true,
	"operations":  true,
	"personal":    true,
	"general":     true,
	"research":    true,
	"marketing":   true,
}

const defaultDomain = "general"

// knownProgramFields are the typed Program fields; anything else found on a
// registry entry is carried through Extra untouched.
var knownProgramFields = map[string]bool{
	"key": true, "title": true, "name": true, "description": true,
	"domain": true, "keywords": true, "tags": true, "aliases": true,
	"owners": true, "status": true, "filename_prefix": true, "color": true,
}

func normalizeStrList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range val {
			s := strings.TrimSpace(fmt.Sprint(item))
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// NormalizeProgram validates and canonicalizes one raw registry entry. A
// missing key is an error; everything else gets a sensible default.
func NormalizeProgram(entry map[string]any) (types.Program, error) {
	key := strings.TrimSpace(fmt.Sprint(orEmpty(entry["key"])))
	if key == "" {
		return types.Program{}, fmt.Errorf("program key required")
	}
	title := strings.TrimSpace(fmt.Sprint(orEmpty(entry["title"])))
	if title == "" {
		title = strings.TrimSpace(fmt.Sprint(orEmpty(entry["name"])))
	}
	if title == "" {
		title = titleFromKey(key)
	}
	domain := strings.ToLower(strings.TrimSpace(fmt.Sprint(orEmpty(entry["domain"]))))
	if !allowedDomains[domain] {
		domain = defaultDomain
	}
	status := strings.TrimSpace(fmt.Sprint(orEmpty(entry["status"])))
	if status == "" {
		status = "active"
	}

	p := types.Program{
		Key:            key,
		Title:          title,
		Description:    strings.TrimSpace(fmt.Sprint(orEmpty(entry["description"]))),
		Domain:         domain,
		Keywords:       normalizeStrList(entry["keywords"]),
		Tags:           normalizeStrList(entry["tags"]),
		Aliases:        normalizeStrList(entry["aliases"]),
		Owners:         normalizeStrList(entry["owners"]),
		Status:         status,
		FilenamePrefix: strings.TrimSpace(fmt.Sprint(orEmpty(entry["filename_prefix"]))),
		Color:          strings.TrimSpace(fmt.Sprint(orEmpty(entry["color"]))),
	}
	for k, v := range entry {
		if knownProgramFields[k] {
			continue
		}
		if p.Extra == nil {
			p.Extra = map[string]any{}
		}
		p.Extra[k] = v
	}
	return p, nil
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// titleFromKey turns "seed_round" into "Seed Round" for entries saved
// without a title. The first rune is uppercased, not the first byte, so
// non-ASCII keys stay valid UTF-8.
func titleFromKey(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

// ProgramRegistry is a single JSON array file replaced wholesale on save.
type ProgramRegistry struct {
	path string
}

func NewProgramRegistry(dir string) *ProgramRegistry {
	return &ProgramRegistry{path: filepath.Join(dir, "programs.json")}
}

// Load never fails: malformed files or entries yield an empty/partial list.
// Duplicate keys keep the first occurrence.
func (r *ProgramRegistry) Load() []types.Program {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	var out []types.Program
	seen := map[string]bool{}
	for _, entry := range raw {
		p, err := NormalizeProgram(entry)
		if err != nil || seen[p.Key] {
			continue
		}
		seen[p.Key] = true
		out = append(out, p)
	}
	return out
}

// Save replaces the whole registry. Entries are normalized first; an entry
// without a key fails the entire save so admins notice.
func (r *ProgramRegistry) Save(entries []map[string]any) ([]types.Program, error) {
	var programs []types.Program
	seen := map[string]bool{}
	for _, entry := range entries {
		p, err := NormalizeProgram(entry)
		if err != nil {
			return nil, err
		}
		if seen[p.Key] {
			return nil, fmt.Errorf("duplicate program key %q", p.Key)
		}
		seen[p.Key] = true
		programs = append(programs, p)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return nil, err
	}
	serialized := make([]map[string]any, 0, len(programs))
	for _, p := range programs {
		m := map[string]any{
			"key":         p.Key,
			"title":       p.Title,
			"description": p.Description,
			"domain":      p.Domain,
			"keywords":    emptyIfNil(p.Keywords),
			"tags":        emptyIfNil(p.Tags),
			"aliases":     emptyIfNil(p.Aliases),
			"owners":      emptyIfNil(p.Owners),
			"status":      p.Status,
		}
		if p.FilenamePrefix != "" {
			m["filename_prefix"] = p.FilenamePrefix
		}
		if p.Color != "" {
			m["color"] = p.Color
		}
		for k, v := range p.Extra {
			m[k] = v
		}
		serialized = append(serialized, m)
	}
	data, err := json.MarshalIndent(serialized, "", "  ")
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
	return programs, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
