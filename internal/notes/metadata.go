package notes

import (
	"path/filepath"
	"strings"

	"github.com/patrickmn/go-cache"

	"voicenotes-go/internal/types"
)

var storedMimes = map[string]string{
	"m4a":  "audio/mp4",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"webm": "audio/webm",
}

// StoredMimeForExt returns the MIME type recorded on the note for a stored
// audio extension.
func StoredMimeForExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if m, ok := storedMimes[ext]; ok {
		return m
	}
	return "audio/" + ext
}

// Enricher backfills derived metadata on notes written by older versions of
// the app. Duration probing is expensive and can legitimately fail (non-WAV
// containers), so each note gets exactly one probe per process lifetime; the
// attempt flag lives in an in-memory sidecar, not on the persisted record.
type Enricher struct {
	audioDir string
	probed   *cache.Cache
}

func NewEnricher(audioDir string) *Enricher {
	return &Enricher{
		audioDir: audioDir,
		probed:   cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

// Ensure fills any missing derived fields on the note in place and reports
// whether anything changed. Calling it twice in a row is a no-op the second
// time.
func (e *Enricher) Ensure(n *types.Note) bool {
	changed := false

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(n.Filename), "."))
	if n.AudioFormat == "" && ext != "" && ext != "txt" {
		n.AudioFormat = ext
		changed = true
	}
	if n.StoredMime == "" && n.AudioFormat != "" {
		n.StoredMime = StoredMimeForExt(n.AudioFormat)
		changed = true
	}
	if n.OriginalFormat == "" && n.AudioFormat != "" {
		n.OriginalFormat = n.AudioFormat
		changed = true
	}
	if n.SampleRateHz == 0 {
		switch n.AudioFormat {
		case "m4a":
			n.SampleRateHz = 44100
			changed = true
		case "wav":
			n.SampleRateHz = 16000
			changed = true
		}
	}

	audioPath := filepath.Join(e.audioDir, n.Filename)
	if n.Date == "" || n.CreatedAt == "" || n.CreatedTS == 0 {
		date, createdAt, createdTS := noteTimestamps(audioPath)
		if n.Date == "" {
			n.Date = date
			changed = true
		}
		if n.CreatedAt == "" {
			n.CreatedAt = createdAt
			changed = true
		}
		if n.CreatedTS == 0 {
			n.CreatedTS = createdTS
			changed = true
		}
	}

	if n.LengthSeconds == nil {
		key := n.BaseID()
		if _, attempted := e.probed.Get(key); !attempted {
			e.probed.Set(key, true, cache.NoExpiration)
			if d := ProbeDuration(audioPath); d != nil {
				n.LengthSeconds = d
				changed = true
			}
		}
	}

	if n.Topics == nil {
		n.Topics = InferTopics(n.Transcription, n.Title)
		if n.Topics == nil {
			n.Topics = []string{}
		}
		changed = true
	}
	if n.Language == "" {
		n.Language = InferLanguage(n.Transcription, n.Title)
		changed = true
	}
	if n.Tags == nil {
		n.Tags = []types.Tag{}
		changed = true
	}

	return changed
}
