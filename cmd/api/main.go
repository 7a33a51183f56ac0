package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"voicenotes-go/internal/config"
	"voicenotes-go/internal/logger"
	"voicenotes-go/internal/pipeline"
	"voicenotes-go/internal/provider"
	"voicenotes-go/internal/reconciler"
	"voicenotes-go/internal/server"
	"voicenotes-go/internal/store"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "voicenotes-go").Info("starting service")

	cfg := config.Load()
	if err := cfg.EnsureDirs(); err != nil {
		log.WithError(err).Fatal("failed to create storage directories")
	}

	registry := provider.NewRegistry(cfg)
	if registry.PrimaryCount() == 0 {
		log.Warn("no primary api keys configured, every note will rely on the fallback provider")
	}

	notesStore := store.NewFilesystemStore(cfg.TranscriptsDir)
	programs := store.NewProgramRegistry(cfg.ProgramsDir)
	folders := store.NewFolderRegistry(cfg.FoldersDir)
	orch := pipeline.NewOrchestrator(registry, notesStore, programs, cfg.VoiceNotesDir)

	// Repair interrupted notes in the background so startup stays fast even
	// with a large backlog.
	go func() {
		rec := reconciler.New(notesStore, orch, cfg.VoiceNotesDir)
		rec.Run(context.Background())
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      server.New(cfg, notesStore, programs, folders, orch).Mux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", srv.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}
