package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	chatText string
	chatErr  error
	trText   string
	trErr    error
	calls    int
}

func (s *stubClient) Chat(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.chatText, s.chatErr
}

func (s *stubClient) Transcribe(ctx context.Context, audio []byte, ext string) (string, error) {
	s.calls++
	return s.trText, s.trErr
}

func TestInvokePrimaryRotation(t *testing.T) {
	failing := errors.New("upstream exploded")
	first := &stubClient{chatErr: failing}
	second := &stubClient{chatErr: failing}
	third := &stubClient{chatText: "hello"}
	secondary := &stubClient{chatText: "should not be used"}
	reg := NewRegistryWithClients([]Client{first, second, third}, secondary)

	text, idx, err := reg.InvokePrimary(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 0, secondary.calls)
}

func TestInvokePrimaryStopsAtFirstSuccess(t *testing.T) {
	first := &stubClient{chatText: "first wins"}
	second := &stubClient{chatText: "never called"}
	reg := NewRegistryWithClients([]Client{first, second}, &stubClient{})

	text, idx, err := reg.InvokePrimary(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "first wins", text)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 0, second.calls)
}

func TestInvokePrimaryExhaustedReturnsLastError(t *testing.T) {
	first := &stubClient{chatErr: errors.New("first error")}
	second := &stubClient{chatErr: errors.New("second error")}
	reg := NewRegistryWithClients([]Client{first, second}, &stubClient{})

	_, idx, err := reg.InvokePrimary(context.Background(), "go")
	require.Error(t, err)
	assert.Equal(t, -1, idx)
	assert.Equal(t, "second error", err.Error())
}

func TestInvokePrimaryNoKeysConfigured(t *testing.T) {
	reg := NewRegistryWithClients(nil, &stubClient{})
	_, _, err := reg.InvokePrimary(context.Background(), "go")
	require.ErrorIs(t, err, ErrNoPrimaryKeys)
	assert.Equal(t, KindNotConfigured, Classify(err))
}

func TestTranscribePrimaryRotation(t *testing.T) {
	first := &stubClient{trErr: errors.New("429 too many requests")}
	second := &stubClient{trText: "spoken words"}
	reg := NewRegistryWithClients([]Client{first, second}, &stubClient{})

	text, idx, err := reg.TranscribePrimary(context.Background(), []byte("riff"), "wav")
	require.NoError(t, err)
	assert.Equal(t, "spoken words", text)
	assert.Equal(t, 1, idx)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"got 429 from upstream", KindRateLimited},
		{"Rate limit reached for requests", KindRateLimited},
		{"You exceeded your current quota", KindRateLimited},
		{"401 Unauthorized", KindAuthFailed},
		{"invalid api key provided", KindAuthFailed},
		{"Publisher Model not served", KindAuthFailed},
		{"no primary api keys configured", KindNotConfigured},
		{"some unrelated network glitch", KindOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(errors.New(tc.msg)), tc.msg)
	}
}

func TestShouldFallback(t *testing.T) {
	assert.True(t, ShouldFallback(errors.New("429")))
	assert.False(t, ShouldFallback(errors.New("some unrelated network glitch")))
	assert.False(t, ShouldFallback(nil))
}
