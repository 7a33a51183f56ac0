package notes

import (
	"encoding/json"
	"strings"

	"voicenotes-go/internal/types"
)

// DedupeTags drops tags with empty labels and collapses duplicates,
// comparing labels case-insensitively. First occurrence wins.
func DedupeTags(tags []types.Tag) []types.Tag {
	seen := map[string]bool{}
	out := make([]types.Tag, 0, len(tags))
	for _, t := range tags {
		label := strings.TrimSpace(t.Label)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, types.Tag{Label: label, Color: t.Color})
	}
	return out
}

// ParseTags accepts the tag formats clients send: a JSON array of strings or
// {label,color} objects, or a plain comma-separated list. Always returns a
// deduplicated slice, never an error.
func ParseTags(raw string) []types.Tag {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []types.Tag{}
	}
	if strings.HasPrefix(raw, "[") {
		var objs []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &objs); err == nil {
			var tags []types.Tag
			for _, item := range objs {
				var s string
				if err := json.Unmarshal(item, &s); err == nil {
					tags = append(tags, types.Tag{Label: s})
					continue
				}
				var obj types.Tag
				if err := json.Unmarshal(item, &obj); err == nil {
					tags = append(tags, obj)
				}
			}
			return DedupeTags(tags)
		}
	}
	var tags []types.Tag
	for _, part := range strings.Split(raw, ",") {
		tags = append(tags, types.Tag{Label: part})
	}
	return DedupeTags(tags)
}
