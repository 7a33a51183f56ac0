package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicenotes-go/internal/pipeline"
	"voicenotes-go/internal/provider"
	"voicenotes-go/internal/store"
	"voicenotes-go/internal/types"
)

type stubClient struct {
	chatText       string
	transcribeText string
}

func (s *stubClient) Chat(ctx context.Context, prompt string) (string, error) {
	return s.chatText, nil
}

func (s *stubClient) Transcribe(ctx context.Context, audio []byte, ext string) (string, error) {
	return s.transcribeText, nil
}

func writeTestWAV(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, 1600),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func newTestReconciler(t *testing.T) (*Reconciler, store.NotesStore, string) {
	t.Helper()
	audioDir := t.TempDir()
	st := store.NewFilesystemStore(t.TempDir())
	reg := provider.NewRegistryWithClients(
		[]provider.Client{&stubClient{chatText: "Recovered Note Title", transcribeText: "recovered transcription text"}},
		&stubClient{},
	)
	p := pipeline.NewOrchestrator(reg, st, nil, audioDir)
	return New(st, p, audioDir), st, audioDir
}

func TestRunRequeuesFailedNote(t *testing.T) {
	r, st, audioDir := newTestReconciler(t)
	writeTestWAV(t, filepath.Join(audioDir, "failed.wav"))
	require.NoError(t, st.Save("failed", &types.Note{
		Filename:            "failed.wav",
		Title:               pipeline.TitleFailed,
		Transcription:       pipeline.TranscriptionFailed,
		TranscriptionStatus: pipeline.StatusFailed,
	}))

	stats := r.Run(context.Background())
	assert.Equal(t, 1, stats.Requeued)

	n, err := st.Load("failed")
	require.NoError(t, err)
	assert.Equal(t, "recovered transcription text", n.Transcription)
	assert.Equal(t, "Recovered Note Title", n.Title)
	assert.Equal(t, pipeline.StatusComplete, n.TranscriptionStatus)
}

func TestRunRequeuesPendingNote(t *testing.T) {
	r, st, audioDir := newTestReconciler(t)
	writeTestWAV(t, filepath.Join(audioDir, "pending.wav"))
	require.NoError(t, st.Save("pending", &types.Note{
		Filename:            "pending.wav",
		Title:               "pending",
		TranscriptionStatus: pipeline.StatusPending,
		Folder:              "Inbox",
	}))

	stats := r.Run(context.Background())
	assert.Equal(t, 1, stats.Requeued)

	n, err := st.Load("pending")
	require.NoError(t, err)
	assert.Equal(t, "recovered transcription text", n.Transcription)
	assert.Equal(t, "Inbox", n.Folder, "placeholder fields survive the requeue")
}

func TestRunSkipsBrokenNoteWithoutAudio(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	require.NoError(t, st.Save("ghost", &types.Note{
		Filename:            "ghost.wav",
		Transcription:       pipeline.TranscriptionFailed,
		TranscriptionStatus: pipeline.StatusFailed,
	}))

	stats := r.Run(context.Background())
	assert.Zero(t, stats.Requeued)

	n, err := st.Load("ghost")
	require.NoError(t, err)
	assert.Equal(t, pipeline.TranscriptionFailed, n.Transcription, "left untouched")
}

func TestRunBackfillsMetadata(t *testing.T) {
	r, st, audioDir := newTestReconciler(t)
	writeTestWAV(t, filepath.Join(audioDir, "old.wav"))
	require.NoError(t, st.Save("old", &types.Note{
		Filename:            "old.wav",
		Title:               "An old complete note",
		Transcription:       "this note predates format metadata",
		TranscriptionStatus: pipeline.StatusComplete,
	}))

	stats := r.Run(context.Background())
	assert.Zero(t, stats.Requeued)
	assert.Equal(t, 1, stats.Backfilled)

	n, err := st.Load("old")
	require.NoError(t, err)
	assert.Equal(t, "wav", n.AudioFormat)
	assert.Equal(t, "audio/wav", n.StoredMime)
	assert.Equal(t, 16000, n.SampleRateHz)
	require.NotNil(t, n.LengthSeconds)
	assert.InDelta(t, 0.1, *n.LengthSeconds, 0.01)
	assert.Equal(t, "this note predates format metadata", n.Transcription, "content untouched")
}

func TestRunPicksUpOrphanAudio(t *testing.T) {
	r, st, audioDir := newTestReconciler(t)
	writeTestWAV(t, filepath.Join(audioDir, "orphan.wav"))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "notes.txt"), []byte("not audio"), 0o644))

	stats := r.Run(context.Background())
	assert.Equal(t, 1, stats.Orphans)

	n, err := st.Load("orphan")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "recovered transcription text", n.Transcription)
}

func TestRunLeavesTextNotesAlone(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	require.NoError(t, st.Save("text-1", &types.Note{
		Filename:            "text-1.txt",
		Title:               "Typed note",
		Transcription:       "typed directly",
		TranscriptionStatus: pipeline.StatusComplete,
		Topics:              []string{"typed"},
		Language:            "en",
		Date:                "2025-01-01",
		CreatedAt:           "2025-01-01T10:00:00Z",
		CreatedTS:           1,
		Tags:                []types.Tag{},
	}))

	stats := r.Run(context.Background())
	assert.Zero(t, stats.Requeued)
}
