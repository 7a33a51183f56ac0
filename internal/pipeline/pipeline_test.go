package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicenotes-go/internal/provider"
	"voicenotes-go/internal/store"
	"voicenotes-go/internal/transcoder"
	"voicenotes-go/internal/types"
)

func init() {
	primaryRetryInterval = time.Millisecond
}

type stubClient struct {
	chatText        string
	chatErr         error
	transcribeText  string
	transcribeErr   error
	chatCalls       int
	transcribeCalls int
}

func (s *stubClient) Chat(ctx context.Context, prompt string) (string, error) {
	s.chatCalls++
	return s.chatText, s.chatErr
}

func (s *stubClient) Transcribe(ctx context.Context, audio []byte, ext string) (string, error) {
	s.transcribeCalls++
	return s.transcribeText, s.transcribeErr
}

type stubPrograms []types.Program

func (s stubPrograms) Load() []types.Program { return s }

// writeTestWAV writes a tenth of a second of 16 kHz mono silence.
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

func newTestOrchestrator(t *testing.T, primary, secondary *stubClient, programs stubPrograms) (*Orchestrator, store.NotesStore, string) {
	t.Helper()
	audioDir := t.TempDir()
	st := store.NewFilesystemStore(t.TempDir())
	reg := provider.NewRegistryWithClients([]provider.Client{primary}, secondary)
	return NewOrchestrator(reg, st, programs, audioDir), st, audioDir
}

func TestRunEndToEnd(t *testing.T) {
	primary := &stubClient{
		transcribeText: "we shipped the new api deployment to the backend cluster",
		chatText:       "Here are some options:\n- **Backend Deployment Recap**\n- Another idea",
	}
	secondary := &stubClient{}
	programs := stubPrograms{{Key: "platform", Title: "Platform", Domain: "programming",
		Keywords: []string{"api", "deployment", "backend"}}}
	o, st, audioDir := newTestOrchestrator(t, primary, secondary, programs)

	writeTestWAV(t, filepath.Join(audioDir, "20250101_memo.wav"))
	plan := transcoder.PlanFor("audio/wav", "20250101_memo.wav")
	require.NoError(t, o.WritePlaceholder("20250101_memo.wav", "Work", []types.Tag{{Label: "standup"}}, plan, "audio/wav", "wav"))

	require.NoError(t, o.Run(context.Background(), "20250101_memo.wav"))

	n, err := st.Load("20250101_memo")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "Backend Deployment Recap", n.Title)
	assert.Equal(t, primary.transcribeText, n.Transcription)
	assert.Equal(t, StatusComplete, n.TranscriptionStatus)
	assert.Equal(t, "wav", n.AudioFormat)
	require.NotNil(t, n.LengthSeconds)
	assert.InDelta(t, 0.1, *n.LengthSeconds, 0.01)
	assert.Equal(t, "Work", n.Folder, "placeholder folder survives the merge")
	assert.Equal(t, []types.Tag{{Label: "standup"}}, n.Tags)
	assert.Equal(t, "programming", n.AutoCategory)
	assert.Equal(t, "platform", n.AutoProgram)
	assert.Zero(t, secondary.chatCalls)
	assert.Zero(t, secondary.transcribeCalls)
}

func TestRunAllProvidersFailWritesSentinels(t *testing.T) {
	primary := &stubClient{
		transcribeErr: errors.New("status 429: rate limited"),
		chatErr:       errors.New("status 429: rate limited"),
	}
	secondary := &stubClient{
		transcribeErr: errors.New("openai fallback not configured"),
		chatErr:       errors.New("openai fallback not configured"),
	}
	o, st, audioDir := newTestOrchestrator(t, primary, secondary, nil)
	writeTestWAV(t, filepath.Join(audioDir, "broken.wav"))

	require.NoError(t, o.Run(context.Background(), "broken.wav"), "provider failures must not surface as errors")

	n, err := st.Load("broken")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, TranscriptionFailed, n.Transcription)
	assert.Equal(t, TitleFailed, n.Title)
	assert.Equal(t, StatusFailed, n.TranscriptionStatus)
	assert.Empty(t, n.AutoCategory, "failed notes are not classified")
}

func TestRunTitleFailureKeepsTranscription(t *testing.T) {
	primary := &stubClient{
		transcribeText: "remember to water the plants",
		chatErr:        errors.New("connection reset by peer"),
	}
	secondary := &stubClient{chatErr: errors.New("openai fallback not configured")}
	o, st, audioDir := newTestOrchestrator(t, primary, secondary, nil)
	writeTestWAV(t, filepath.Join(audioDir, "plants.wav"))

	require.NoError(t, o.Run(context.Background(), "plants.wav"))

	n, err := st.Load("plants")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "remember to water the plants", n.Transcription)
	assert.Equal(t, TitleFailed, n.Title)
	assert.Equal(t, StatusComplete, n.TranscriptionStatus, "the transcription itself succeeded")
}

func TestRunRateLimitSkipsSecondPrimaryPass(t *testing.T) {
	primary := &stubClient{transcribeErr: errors.New("you exceeded your current quota")}
	secondary := &stubClient{transcribeText: "saved by the fallback", chatText: "Fallback Title"}
	o, st, audioDir := newTestOrchestrator(t, primary, secondary, nil)
	writeTestWAV(t, filepath.Join(audioDir, "quota.wav"))

	require.NoError(t, o.Run(context.Background(), "quota.wav"))

	assert.Equal(t, 1, primary.transcribeCalls, "rate limit errors skip the retry pass")
	assert.Equal(t, 1, secondary.transcribeCalls)
	n, err := st.Load("quota")
	require.NoError(t, err)
	assert.Equal(t, "saved by the fallback", n.Transcription)
}

func TestRunTransientErrorRetriesPrimaryOnce(t *testing.T) {
	primary := &stubClient{transcribeErr: errors.New("connection reset by peer")}
	secondary := &stubClient{transcribeText: "eventually transcribed", chatText: "A Title"}
	o, _, audioDir := newTestOrchestrator(t, primary, secondary, nil)
	writeTestWAV(t, filepath.Join(audioDir, "flaky.wav"))

	require.NoError(t, o.Run(context.Background(), "flaky.wav"))

	assert.Equal(t, 2, primary.transcribeCalls, "transient errors get a second primary pass")
	assert.Equal(t, 1, secondary.transcribeCalls)
}

func TestRunMissingAudioFileWritesSentinels(t *testing.T) {
	primary := &stubClient{transcribeText: "never called"}
	o, st, _ := newTestOrchestrator(t, primary, &stubClient{}, nil)

	require.NoError(t, o.Run(context.Background(), "ghost.wav"))

	n, err := st.Load("ghost")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, TranscriptionFailed, n.Transcription)
	assert.Equal(t, StatusFailed, n.TranscriptionStatus)
	assert.Zero(t, primary.transcribeCalls)
}

func TestWritePlaceholder(t *testing.T) {
	o, st, _ := newTestOrchestrator(t, &stubClient{}, &stubClient{}, nil)
	plan := transcoder.PlanFor("audio/webm", "clip.webm")

	require.NoError(t, o.WritePlaceholder("clip.m4a", "Inbox", nil, plan, "audio/webm", "webm"))

	n, err := st.Load("clip")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, StatusPending, n.TranscriptionStatus)
	assert.Equal(t, "clip", n.Title, "placeholder title is the base id")
	assert.Empty(t, n.Transcription)
	assert.Equal(t, "m4a", n.AudioFormat)
	assert.Equal(t, "audio/mp4", n.StoredMime)
	assert.Equal(t, "webm", n.TranscodedFrom)
	assert.True(t, n.Transcoded)
	assert.Equal(t, 44100, n.SampleRateHz)
	assert.Equal(t, "Inbox", n.Folder)
}

func TestCreateTextNote(t *testing.T) {
	o, st, _ := newTestOrchestrator(t, &stubClient{}, &stubClient{}, nil)

	n, err := o.CreateTextNote(context.Background(), TextNotePayload{
		Transcription: "pick up groceries for the family dinner",
		Title:         "Groceries",
		Folder:        "Personal",
		Tags:          []types.Tag{{Label: "errand"}, {Label: "Errand"}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(n.Filename, "text-"))
	assert.True(t, strings.HasSuffix(n.Filename, ".txt"))
	assert.Equal(t, "Groceries", n.Title)
	assert.Equal(t, StatusComplete, n.TranscriptionStatus)
	assert.Equal(t, []types.Tag{{Label: "errand"}}, n.Tags)
	assert.Nil(t, n.LengthSeconds)

	stored, err := st.Load(n.BaseID())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, n.Filename, stored.Filename)
}

func TestCreateTextNoteGeneratesTitle(t *testing.T) {
	primary := &stubClient{chatText: "**Family Dinner Plan**"}
	o, _, _ := newTestOrchestrator(t, primary, &stubClient{}, nil)

	n, err := o.CreateTextNote(context.Background(), TextNotePayload{
		Transcription: "pick up groceries for the family dinner",
	})
	require.NoError(t, err)
	assert.Equal(t, "Family Dinner Plan", n.Title)
}

func TestCreateTextNoteTitleFallbackUsesFirstWords(t *testing.T) {
	primary := &stubClient{chatErr: errors.New("status 429: rate limited")}
	secondary := &stubClient{chatErr: errors.New("openai fallback not configured")}
	o, _, _ := newTestOrchestrator(t, primary, secondary, nil)

	n, err := o.CreateTextNote(context.Background(), TextNotePayload{
		Transcription: "one two three four five six seven eight nine ten",
	})
	require.NoError(t, err)
	assert.Equal(t, "one two three four five six seven eight", n.Title)
}

func TestCreateTextNoteRejectsEmpty(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &stubClient{}, &stubClient{}, nil)
	_, err := o.CreateTextNote(context.Background(), TextNotePayload{Transcription: "   "})
	assert.Error(t, err)
}
