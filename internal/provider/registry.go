// Package provider wraps the primary (rotated-key) and secondary (single-key)
// AI endpoints behind a Registry constructed once at startup and passed to
// the pipeline, so nothing here lives in package-level state.
package provider

import (
	"context"

	"voicenotes-go/internal/config"
	"voicenotes-go/internal/logger"
)

// Registry holds the ordered primary clients and the single secondary
// fallback client.
type Registry struct {
	primaries []Client
	secondary Client
}

// NewRegistry builds one primary client per configured key, in key order, and
// the secondary fallback client.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{}
	for _, key := range cfg.PrimaryKeys {
		r.primaries = append(r.primaries, newGeminiClient(cfg.PrimaryBaseURL, cfg.PrimaryModel, key))
	}
	r.secondary = newOpenAIClient(cfg.SecondaryBaseURL, cfg.SecondaryTitleModel, cfg.SecondaryTranscribeModel, cfg.SecondaryKey)
	return r
}

// NewRegistryWithClients wires explicit clients; tests use it to substitute
// stubs for the HTTP implementations.
func NewRegistryWithClients(primaries []Client, secondary Client) *Registry {
	return &Registry{primaries: primaries, secondary: secondary}
}

// PrimaryCount reports how many rotatable credentials are configured.
func (r *Registry) PrimaryCount() int { return len(r.primaries) }

// InvokePrimary tries each primary client in order and returns the first
// successful response along with the index of the client that produced it.
// Every failure rotates to the next key, whatever its cause; the last error
// is returned once the list is exhausted.
func (r *Registry) InvokePrimary(ctx context.Context, prompt string) (string, int, error) {
	log := logger.Component("provider")
	var lastErr error
	for idx, client := range r.primaries {
		text, err := client.Chat(ctx, prompt)
		if err == nil {
			return text, idx, nil
		}
		log.WithField("key_index", idx).WithField("error", err.Error()).Warn("primary chat attempt failed, rotating")
		lastErr = err
	}
	if lastErr != nil {
		return "", -1, lastErr
	}
	return "", -1, ErrNoPrimaryKeys
}

// TranscribePrimary rotates through the primary clients for audio
// transcription, same contract as InvokePrimary.
func (r *Registry) TranscribePrimary(ctx context.Context, audio []byte, ext string) (string, int, error) {
	log := logger.Component("provider")
	var lastErr error
	for idx, client := range r.primaries {
		text, err := client.Transcribe(ctx, audio, ext)
		if err == nil {
			return text, idx, nil
		}
		log.WithField("key_index", idx).WithField("error", err.Error()).Warn("primary transcribe attempt failed, rotating")
		lastErr = err
	}
	if lastErr != nil {
		return "", -1, lastErr
	}
	return "", -1, ErrNoPrimaryKeys
}

// InvokeSecondary calls the fallback chat endpoint.
func (r *Registry) InvokeSecondary(ctx context.Context, prompt string) (string, error) {
	return r.secondary.Chat(ctx, prompt)
}

// TranscribeSecondary calls the fallback transcription endpoint.
func (r *Registry) TranscribeSecondary(ctx context.Context, audio []byte, ext string) (string, error) {
	return r.secondary.Transcribe(ctx, audio, ext)
}
