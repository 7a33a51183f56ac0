// Package server exposes the note pipeline over HTTP. Handlers stay thin:
// decode, delegate, encode. Long-running pipeline work happens in the
// background; uploads answer with the placeholder record.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicenotes-go/internal/config"
	"voicenotes-go/internal/export"
	"voicenotes-go/internal/logger"
	"voicenotes-go/internal/notes"
	"voicenotes-go/internal/pipeline"
	"voicenotes-go/internal/store"
	"voicenotes-go/internal/transcoder"
	"voicenotes-go/internal/types"
)

const maxUploadBytes = 64 << 20

type Server struct {
	Cfg      *config.Config
	Store    store.NotesStore
	Programs *store.ProgramRegistry
	Folders  *store.FolderRegistry
	Pipeline *pipeline.Orchestrator
}

func New(cfg *config.Config, st store.NotesStore, programs *store.ProgramRegistry, folders *store.FolderRegistry, p *pipeline.Orchestrator) *Server {
	return &Server{Cfg: cfg, Store: st, Programs: programs, Folders: folders, Pipeline: p}
}

// Mux wires every route. Method-qualified patterns keep the dispatch in the
// standard mux instead of per-handler switches.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("GET /api/notes", s.handleListNotes)
	mux.HandleFunc("POST /api/notes", s.handleUpload)
	mux.HandleFunc("POST /api/notes/text", s.handleCreateTextNote)
	mux.HandleFunc("GET /api/notes/export", s.handleExport)
	mux.HandleFunc("POST /api/notes/{filename}/retry", s.handleRetry)
	mux.HandleFunc("DELETE /api/notes/{filename}", s.handleDeleteNote)
	mux.HandleFunc("PATCH /api/notes/{filename}/tags", s.handleUpdateTags)
	mux.HandleFunc("PATCH /api/notes/{filename}/folder", s.handleUpdateFolder)

	mux.HandleFunc("GET /api/programs", s.handleListPrograms)
	mux.HandleFunc("PUT /api/programs", s.handleSavePrograms)
	mux.HandleFunc("GET /api/folders", s.handleListFolders)
	mux.HandleFunc("PUT /api/folders", s.handleSaveFolders)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Component("server").WithField("error", err.Error()).Error("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// baseOf accepts either a full filename or a bare base id in the path.
func baseOf(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

func (s *Server) loadByPath(w http.ResponseWriter, r *http.Request) *types.Note {
	base := baseOf(r.PathValue("filename"))
	n, err := s.Store.Load(base)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load note")
		return nil
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "note not found")
		return nil
	}
	return n
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "list_notes")
	all, err := s.Store.List()
	if err != nil {
		reqLog.WithField("error", err.Error()).Error("list failed")
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	// Backfill derived metadata lazily so old records converge as they are
	// read. The one-shot probe flag keeps repeat listings cheap.
	for _, n := range all {
		if s.Pipeline.Enricher.Ensure(n) {
			if err := s.Store.Save(n.BaseID(), n); err != nil {
				reqLog.WithField("filename", n.Filename).WithField("error", err.Error()).
					Warn("failed to persist backfilled note")
			}
		}
	}
	if all == nil {
		all = []*types.Note{}
	}
	writeJSON(w, http.StatusOK, all)
}

// sanitizeBase strips anything outside [A-Za-z0-9_-] from a client-supplied
// filename base so it is safe as a path component.
func sanitizeBase(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "note"
	}
	return out
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "upload")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	uploadExt := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	plan := transcoder.PlanFor(contentType, header.Filename)

	base := sanitizeBase(baseOf(filepath.Base(header.Filename)))
	finalName := fmt.Sprintf("%s_%s.%s", time.Now().Format("20060102_150405"), base, plan.TargetExt)
	finalPath := filepath.Join(s.Cfg.VoiceNotesDir, finalName)

	tmpPath := filepath.Join(s.Cfg.VoiceNotesDir, ".upload-"+uuid.New().String())
	tmp, err := os.Create(tmpPath)
	if err != nil {
		reqLog.WithField("error", err.Error()).Error("temp file create failed")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	tmp.Close()

	if plan.NeedsTranscode {
		if err := transcoder.Transcode(r.Context(), tmpPath, finalPath, plan); err != nil {
			os.Remove(tmpPath)
			reqLog.WithField("error", err.Error()).Warn("transcode failed, rejecting upload")
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		os.Remove(tmpPath)
	} else if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	folder := r.FormValue("folder")
	tags := notes.ParseTags(r.FormValue("tags"))
	if err := s.Pipeline.WritePlaceholder(finalName, folder, tags, plan, contentType, uploadExt); err != nil {
		reqLog.WithField("error", err.Error()).Error("placeholder write failed")
		writeError(w, http.StatusInternalServerError, "failed to record upload")
		return
	}

	reqLog.WithField("filename", finalName).Info("upload accepted, pipeline started")
	go func() {
		if err := s.Pipeline.Run(context.Background(), finalName); err != nil {
			logger.Component("server").WithField("filename", finalName).
				WithField("error", err.Error()).Error("background pipeline run failed")
		}
	}()

	placeholder, err := s.Store.Load(baseOf(finalName))
	if err != nil || placeholder == nil {
		writeError(w, http.StatusInternalServerError, "failed to load placeholder")
		return
	}
	writeJSON(w, http.StatusAccepted, placeholder)
}

func (s *Server) handleCreateTextNote(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "create_text_note")
	var payload pipeline.TextNotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	n, err := s.Pipeline.CreateTextNote(r.Context(), payload)
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("text note rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "retry")
	n := s.loadByPath(w, r)
	if n == nil {
		return
	}
	if _, err := os.Stat(filepath.Join(s.Cfg.VoiceNotesDir, n.Filename)); err != nil {
		writeError(w, http.StatusConflict, "audio file missing, cannot retry")
		return
	}
	n.TranscriptionStatus = pipeline.StatusPending
	if err := s.Store.Save(n.BaseID(), n); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark note pending")
		return
	}
	reqLog.WithField("filename", n.Filename).Info("retry requested")
	filename := n.Filename
	go func() {
		if err := s.Pipeline.Run(context.Background(), filename); err != nil {
			logger.Component("server").WithField("filename", filename).
				WithField("error", err.Error()).Error("retry pipeline run failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, n)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "delete_note")
	n := s.loadByPath(w, r)
	if n == nil {
		return
	}
	if err := s.Store.Delete(n.BaseID()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete note")
		return
	}
	if !strings.HasSuffix(n.Filename, ".txt") {
		if err := os.Remove(filepath.Join(s.Cfg.VoiceNotesDir, n.Filename)); err != nil && !os.IsNotExist(err) {
			reqLog.WithField("filename", n.Filename).WithField("error", err.Error()).
				Warn("audio file removal failed")
		}
	}
	reqLog.WithField("filename", n.Filename).Info("note deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	n := s.loadByPath(w, r)
	if n == nil {
		return
	}
	var body struct {
		Tags json.RawMessage `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	raw := strings.TrimSpace(string(body.Tags))
	if raw == "" || raw == "null" {
		n.Tags = []types.Tag{}
	} else {
		n.Tags = notes.ParseTags(raw)
	}
	if err := s.Store.Save(n.BaseID(), n); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save note")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	n := s.loadByPath(w, r)
	if n == nil {
		return
	}
	var body struct {
		Folder string `json:"folder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	n.Folder = strings.TrimSpace(body.Folder)
	if err := s.Store.Save(n.BaseID(), n); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save note")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "export")
	all, err := s.Store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	wb, err := export.BuildWorkbook(all)
	if err != nil {
		reqLog.WithField("error", err.Error()).Error("workbook build failed")
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}
	defer wb.Close()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=voice-notes-%s.xlsx", time.Now().Format("20060102")))
	if err := wb.Write(w); err != nil {
		reqLog.WithField("error", err.Error()).Error("workbook stream failed")
	}
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	programs := s.Programs.Load()
	if programs == nil {
		programs = []types.Program{}
	}
	writeJSON(w, http.StatusOK, programs)
}

func (s *Server) handleSavePrograms(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "save_programs")
	var entries []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body, expected an array of programs")
		return
	}
	programs, err := s.Programs.Save(entries)
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("program registry rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reqLog.WithField("count", len(programs)).Info("program registry replaced")
	writeJSON(w, http.StatusOK, programs)
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders := s.Folders.Load()
	if folders == nil {
		folders = []string{}
	}
	writeJSON(w, http.StatusOK, folders)
}

func (s *Server) handleSaveFolders(w http.ResponseWriter, r *http.Request) {
	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body, expected an array of folder names")
		return
	}
	cleaned, err := s.Folders.Save(names)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save folders")
		return
	}
	writeJSON(w, http.StatusOK, cleaned)
}
