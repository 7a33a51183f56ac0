// Package pipeline drives the end-to-end flow for one note: audio bytes,
// transcription, title, classification, persisted record. Provider failures
// never escape; they degrade to sentinel values on the record so the note
// survives and can be retried.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"voicenotes-go/internal/categorizer"
	"voicenotes-go/internal/logger"
	"voicenotes-go/internal/notes"
	"voicenotes-go/internal/provider"
	"voicenotes-go/internal/store"
	"voicenotes-go/internal/transcoder"
	"voicenotes-go/internal/types"
)

// Sentinel values stored when a step fails on every provider.
const (
	TranscriptionFailed = "Transcription failed."
	TitleFailed         = "Title generation failed."
)

const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

const titleInstruction = "Return exactly one short title (5-8 words) for the transcription below. " +
	"Use the same language as the transcription. Do not include quotes, bullets, markdown, or any extra text. " +
	"Output only the title on a single line.\n\n"

// primaryRetryInterval spaces the second pass through the primary rotation.
// Tests shrink it.
var primaryRetryInterval = 500 * time.Millisecond

// ProgramSource supplies the current program registry snapshot for
// classification.
type ProgramSource interface {
	Load() []types.Program
}

// Orchestrator owns note creation and repair. One instance per process,
// shared by the HTTP layer and the startup reconciler.
type Orchestrator struct {
	Providers *provider.Registry
	Store     store.NotesStore
	Programs  ProgramSource
	Enricher  *notes.Enricher
	AudioDir  string

	log *logrus.Entry
}

func NewOrchestrator(reg *provider.Registry, st store.NotesStore, programs ProgramSource, audioDir string) *Orchestrator {
	return &Orchestrator{
		Providers: reg,
		Store:     st,
		Programs:  programs,
		Enricher:  notes.NewEnricher(audioDir),
		AudioDir:  audioDir,
		log:       logger.Component("pipeline"),
	}
}

// callWithFallback applies the retry policy shared by both provider-backed
// steps: up to two passes through the primary rotation, bailing out early
// when the error says the primary path is unusable, then one shot at the
// secondary. A secondary failure is final.
func callWithFallback(primary, secondary func() (string, error)) (string, error) {
	var text string
	op := func() error {
		t, err := primary()
		if err != nil {
			if provider.ShouldFallback(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		text = t
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(primaryRetryInterval), 1)
	if err := backoff.Retry(op, bo); err == nil {
		return text, nil
	}
	return secondary()
}

func baseID(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// Run executes the full pipeline for one stored audio file. It returns an
// error only for storage failures; provider errors end up as sentinels on
// the persisted note.
func (o *Orchestrator) Run(ctx context.Context, filename string) error {
	log := o.log.WithField("filename", filename)
	base := baseID(filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	audio, readErr := os.ReadFile(filepath.Join(o.AudioDir, filename))

	transcription := ""
	var trErr error
	if readErr != nil {
		trErr = fmt.Errorf("read audio: %w", readErr)
	} else {
		transcription, trErr = callWithFallback(
			func() (string, error) {
				t, idx, err := o.Providers.TranscribePrimary(ctx, audio, ext)
				if err == nil {
					log.WithField("key_index", idx).Info("transcribed via primary")
				}
				return t, err
			},
			func() (string, error) {
				return o.Providers.TranscribeSecondary(ctx, audio, ext)
			},
		)
	}

	title := ""
	if trErr != nil {
		log.WithFields(logrus.Fields{
			"error": trErr.Error(),
			"kind":  provider.Classify(trErr).String(),
		}).Warn("transcription failed on all providers")
		transcription = TranscriptionFailed
		title = TitleFailed
	} else {
		raw, titleErr := callWithFallback(
			func() (string, error) {
				t, idx, err := o.Providers.InvokePrimary(ctx, titleInstruction+transcription)
				if err == nil {
					log.WithField("key_index", idx).Info("title generated via primary")
				}
				return t, err
			},
			func() (string, error) {
				return o.Providers.InvokeSecondary(ctx, titleInstruction+transcription)
			},
		)
		if titleErr != nil {
			log.WithField("error", titleErr.Error()).Warn("title generation failed on all providers")
			title = TitleFailed
		} else {
			title = provider.NormalizeTitleOutput(raw)
		}
	}

	n := notes.BuildPayload(o.AudioDir, filename, title, transcription, true)
	if trErr != nil {
		n.TranscriptionStatus = StatusFailed
	} else {
		n.TranscriptionStatus = StatusComplete
		o.applyClassification(&n)
	}

	if existing, err := o.Store.Load(base); err == nil && existing != nil {
		mergePlaceholder(&n, existing)
	}

	if err := o.Store.Save(base, &n); err != nil {
		return fmt.Errorf("persist note %s: %w", base, err)
	}
	log.WithField("status", n.TranscriptionStatus).Info("note persisted")
	return nil
}

// mergePlaceholder carries user-editable and upload-time fields from the
// existing record into the freshly built one. Creation timestamps are
// immutable once set.
func mergePlaceholder(n, placeholder *types.Note) {
	if placeholder.Folder != "" {
		n.Folder = placeholder.Folder
	}
	if len(placeholder.Tags) > 0 {
		n.Tags = notes.DedupeTags(placeholder.Tags)
	}
	if placeholder.Date != "" {
		n.Date = placeholder.Date
	}
	if placeholder.CreatedAt != "" {
		n.CreatedAt = placeholder.CreatedAt
	}
	if placeholder.CreatedTS != 0 {
		n.CreatedTS = placeholder.CreatedTS
	}
	if placeholder.AudioFormat != "" {
		n.AudioFormat = placeholder.AudioFormat
	}
	if placeholder.StoredMime != "" {
		n.StoredMime = placeholder.StoredMime
	}
	if placeholder.OriginalFormat != "" {
		n.OriginalFormat = placeholder.OriginalFormat
	}
	if placeholder.Transcoded {
		n.Transcoded = true
	}
	if placeholder.TranscodedFrom != "" {
		n.TranscodedFrom = placeholder.TranscodedFrom
	}
	if placeholder.SampleRateHz != 0 {
		n.SampleRateHz = placeholder.SampleRateHz
	}
	if placeholder.UploadExt != "" {
		n.UploadExt = placeholder.UploadExt
	}
	if placeholder.ContentType != "" {
		n.ContentType = placeholder.ContentType
	}
}

// applyClassification runs the categorizer and attaches its output.
// Classification can never block persistence; a missing registry just means
// no program fields.
func (o *Orchestrator) applyClassification(n *types.Note) {
	var programs []types.Program
	if o.Programs != nil {
		programs = o.Programs.Load()
	}
	res := categorizer.Categorize(n.Transcription, n.Title, programs)
	n.AutoCategory = res.Domain
	n.AutoCategoryConfidence = res.Confidence
	n.AutoCategoryRationale = res.Rationale
	if res.Program != "" {
		n.AutoProgram = res.Program
		n.AutoProgramConfidence = res.ProgramConfidence
		n.AutoProgramRationale = res.ProgramRationale
	}
	o.log.WithFields(logrus.Fields{
		"filename": n.Filename,
		"domain":   res.Domain,
		"program":  res.Program,
	}).Info("note classified")
}

// WritePlaceholder persists the minimal pending record synchronously at
// upload time so list views show the note before the pipeline finishes.
func (o *Orchestrator) WritePlaceholder(filename, folder string, tags []types.Tag, plan transcoder.Plan, contentType, uploadExt string) error {
	n := notes.BuildPayload(o.AudioDir, filename, baseID(filename), "", false)
	n.TranscriptionStatus = StatusPending
	n.Folder = strings.TrimSpace(folder)
	n.Tags = notes.DedupeTags(tags)
	n.AudioFormat = plan.TargetExt
	n.StoredMime = plan.StoredMime
	if plan.SourceExt != "" {
		n.OriginalFormat = plan.SourceExt
	} else {
		n.OriginalFormat = plan.TargetExt
	}
	n.Transcoded = plan.NeedsTranscode
	n.TranscodedFrom = plan.TranscodedFrom
	n.SampleRateHz = plan.SampleRateHz
	n.ContentType = contentType
	n.UploadExt = uploadExt
	return o.Store.Save(baseID(filename), &n)
}

// TextNotePayload is the body of a text note creation request.
type TextNotePayload struct {
	Transcription string      `json:"transcription"`
	Title         string      `json:"title"`
	Date          string      `json:"date"`
	Folder        string      `json:"folder"`
	Tags          []types.Tag `json:"tags"`
}

// CreateTextNote persists a text-only note under a synthetic filename. When
// no title is supplied the providers generate one, with the first words of
// the text as the last resort.
func (o *Orchestrator) CreateTextNote(ctx context.Context, payload TextNotePayload) (*types.Note, error) {
	transcription := strings.TrimSpace(payload.Transcription)
	if transcription == "" {
		return nil, fmt.Errorf("transcription is required")
	}

	now := time.Now()
	nid := fmt.Sprintf("text-%s_%06d-%s",
		now.Format("20060102_150405"),
		now.Nanosecond()/1000,
		strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	filename := nid + ".txt"

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		raw, err := callWithFallback(
			func() (string, error) {
				t, _, err := o.Providers.InvokePrimary(ctx, titleInstruction+transcription)
				return t, err
			},
			func() (string, error) {
				return o.Providers.InvokeSecondary(ctx, titleInstruction+transcription)
			},
		)
		if err == nil {
			title = provider.NormalizeTitleOutput(raw)
		} else {
			words := strings.Fields(transcription)
			if len(words) > 8 {
				words = words[:8]
			}
			title = strings.Join(words, " ")
			if title == "" {
				title = "Text Note"
			}
		}
	}

	n := notes.BuildPayload(o.AudioDir, filename, title, transcription, false)
	n.TranscriptionStatus = StatusComplete
	if d := strings.TrimSpace(payload.Date); d != "" {
		n.Date = d
	}
	n.Folder = strings.TrimSpace(payload.Folder)
	n.Tags = notes.DedupeTags(payload.Tags)
	o.applyClassification(&n)

	if err := o.Store.Save(nid, &n); err != nil {
		return nil, fmt.Errorf("persist text note: %w", err)
	}
	return &n, nil
}
