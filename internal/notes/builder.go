package notes

import (
	"os"
	"path/filepath"
	"time"

	"voicenotes-go/internal/types"
)

// noteTimestamps derives (date, created_at, created_ts) from the audio
// file's modification time, falling back to now when the file is missing
// (text-only notes have no audio file).
func noteTimestamps(audioPath string) (string, string, int64) {
	when := time.Now()
	if info, err := os.Stat(audioPath); err == nil {
		when = info.ModTime()
	}
	return when.Format("2006-01-02"), when.Format(time.RFC3339), when.UnixMilli()
}

// BuildPayload assembles the core note record for one audio file. Format
// metadata, folder, and tags are layered on by the caller. includeLength
// controls whether the duration probe runs now or is deferred to the
// backfill pass.
func BuildPayload(audioDir, filename, title, transcription string, includeLength bool) types.Note {
	audioPath := filepath.Join(audioDir, filename)
	date, createdAt, createdTS := noteTimestamps(audioPath)

	n := types.Note{
		Filename:      filename,
		Title:         title,
		Transcription: transcription,
		Date:          date,
		CreatedAt:     createdAt,
		CreatedTS:     createdTS,
		Topics:        InferTopics(transcription, title),
		Language:      InferLanguage(transcription, title),
		Tags:          []types.Tag{},
	}
	if n.Topics == nil {
		n.Topics = []string{}
	}
	if includeLength {
		n.LengthSeconds = ProbeDuration(audioPath)
	}
	return n
}
