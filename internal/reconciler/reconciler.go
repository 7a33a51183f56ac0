// Package reconciler repairs the note store at startup: notes that crashed
// mid-pipeline are requeued, older records get missing derived metadata
// backfilled, and audio files without any record are picked up fresh.
package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"voicenotes-go/internal/logger"
	"voicenotes-go/internal/pipeline"
	"voicenotes-go/internal/store"
	"voicenotes-go/internal/types"
)

// maxConcurrent caps simultaneous pipeline reruns so a large backlog does not
// burn through every provider key at once.
const maxConcurrent = 3

var audioExts = map[string]bool{
	"wav": true, "m4a": true, "mp3": true, "ogg": true, "webm": true,
}

// Stats summarizes one reconcile pass, for the startup log line.
type Stats struct {
	Scanned    int
	Requeued   int
	Backfilled int
	Orphans    int
}

type Reconciler struct {
	Store    store.NotesStore
	Pipeline *pipeline.Orchestrator
	AudioDir string

	log *logrus.Entry
}

func New(st store.NotesStore, p *pipeline.Orchestrator, audioDir string) *Reconciler {
	return &Reconciler{
		Store:    st,
		Pipeline: p,
		AudioDir: audioDir,
		log:      logger.Component("reconciler"),
	}
}

// needsRequeue reports whether a record should go back through the full
// pipeline. Text notes never do; their content arrived complete.
func needsRequeue(n *types.Note) bool {
	if strings.HasSuffix(strings.ToLower(n.Filename), ".txt") {
		return false
	}
	if n.TranscriptionStatus == pipeline.StatusPending || n.TranscriptionStatus == pipeline.StatusFailed {
		return true
	}
	if strings.TrimSpace(n.Transcription) == "" || n.Transcription == pipeline.TranscriptionFailed {
		return true
	}
	return n.Title == pipeline.TitleFailed
}

func (r *Reconciler) audioExists(filename string) bool {
	_, err := os.Stat(filepath.Join(r.AudioDir, filename))
	return err == nil
}

// Run performs one full reconcile pass. Pipeline reruns are bounded by a
// weighted semaphore; Run returns once every rerun has finished.
func (r *Reconciler) Run(ctx context.Context) Stats {
	var stats Stats

	all, err := r.Store.List()
	if err != nil {
		r.log.WithField("error", err.Error()).Error("listing notes failed, skipping reconcile")
		return stats
	}
	stats.Scanned = len(all)

	sem := semaphore.NewWeighted(maxConcurrent)
	var wg sync.WaitGroup
	rerun := func(filename string) {
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			if err := r.Pipeline.Run(ctx, filename); err != nil {
				r.log.WithField("filename", filename).WithField("error", err.Error()).
					Error("requeued pipeline run failed")
			}
		}()
	}

	known := map[string]bool{}
	for _, n := range all {
		known[n.BaseID()] = true

		if needsRequeue(n) {
			if !r.audioExists(n.Filename) {
				r.log.WithField("filename", n.Filename).Warn("broken note has no audio file, leaving as is")
				continue
			}
			r.log.WithField("filename", n.Filename).Info("requeueing incomplete note")
			stats.Requeued++
			rerun(n.Filename)
			continue
		}

		if r.Pipeline.Enricher.Ensure(n) {
			if err := r.Store.Save(n.BaseID(), n); err != nil {
				r.log.WithField("filename", n.Filename).WithField("error", err.Error()).
					Error("saving backfilled note failed")
				continue
			}
			stats.Backfilled++
		}
	}

	// Audio files that never got a record, e.g. the process died between the
	// upload write and the placeholder save.
	entries, err := os.ReadDir(r.AudioDir)
	if err != nil {
		r.log.WithField("error", err.Error()).Warn("audio dir unreadable, skipping orphan scan")
	} else {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
			if !audioExts[ext] {
				continue
			}
			base := strings.TrimSuffix(name, filepath.Ext(name))
			if known[base] {
				continue
			}
			r.log.WithField("filename", name).Info("found orphan audio file, running pipeline")
			stats.Orphans++
			rerun(name)
		}
	}

	wg.Wait()
	r.log.WithFields(logrus.Fields{
		"scanned":    stats.Scanned,
		"requeued":   stats.Requeued,
		"backfilled": stats.Backfilled,
		"orphans":    stats.Orphans,
	}).Info("reconcile pass complete")
	return stats
}
