package transcoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanForWebm(t *testing.T) {
	p := PlanFor("audio/webm;codecs=opus", "clip.webm")
	assert.Equal(t, "m4a", p.TargetExt)
	assert.True(t, p.NeedsTranscode)
	assert.Equal(t, "webm", p.TranscodedFrom)
	assert.Equal(t, "audio/mp4", p.StoredMime)
	assert.Equal(t, 44100, p.SampleRateHz)
}

func TestPlanForOgg(t *testing.T) {
	p := PlanFor("audio/ogg", "voice.ogg")
	assert.Equal(t, "m4a", p.TargetExt)
	assert.True(t, p.NeedsTranscode)
	assert.Equal(t, "ogg", p.TranscodedFrom)
}

func TestPlanForVideo(t *testing.T) {
	p := PlanFor("video/mp4", "screen.mp4")
	assert.Equal(t, "m4a", p.TargetExt)
	assert.True(t, p.NeedsTranscode)
	assert.Equal(t, "mp4", p.TranscodedFrom)
}

func TestPlanForM4APassthrough(t *testing.T) {
	p := PlanFor("audio/mp4", "memo.m4a")
	assert.Equal(t, "m4a", p.TargetExt)
	assert.False(t, p.NeedsTranscode)
	assert.Empty(t, p.TranscodedFrom)
	assert.Equal(t, 44100, p.SampleRateHz)
}

func TestPlanForAACWithWrongExtension(t *testing.T) {
	p := PlanFor("audio/aac", "memo.bin")
	assert.Equal(t, "m4a", p.TargetExt)
	assert.True(t, p.NeedsTranscode)
}

func TestPlanForMP3Passthrough(t *testing.T) {
	p := PlanFor("audio/mpeg", "song.mp3")
	assert.Equal(t, "mp3", p.TargetExt)
	assert.False(t, p.NeedsTranscode)
	assert.Equal(t, "audio/mpeg", p.StoredMime)
	assert.Zero(t, p.SampleRateHz)
}

func TestPlanForUnknownNormalizesToWAV(t *testing.T) {
	p := PlanFor("application/octet-stream", "mystery.flac")
	assert.Equal(t, "wav", p.TargetExt)
	assert.True(t, p.NeedsTranscode)
	assert.Equal(t, "flac", p.TranscodedFrom)
	assert.Equal(t, "audio/wav", p.StoredMime)
	assert.Equal(t, 16000, p.SampleRateHz)
}

func TestPlanForNoExtension(t *testing.T) {
	p := PlanFor("", "blob")
	assert.Equal(t, "wav", p.TargetExt)
	assert.Equal(t, "wav", p.SourceExt)
	assert.Empty(t, p.TranscodedFrom)
}
