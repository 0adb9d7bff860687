package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/valter-silva-au/ai-dev-team/internal/storage"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

type startRequest struct {
	Idea string `json:"idea"`
}

type startResponse struct {
	RunID string `json:"run_id"`
}

// statusResponse mirrors a run's latest state. While the run is in flight
// Status carries the latest progress message; afterwards it is the terminal
// status.
type statusResponse struct {
	RunID       string           `json:"run_id"`
	Idea        string           `json:"idea,omitempty"`
	Status      string           `json:"status"`
	State       models.RunStatus `json:"state"`
	Progress    []string         `json:"progress,omitempty"`
	Message     string           `json:"message,omitempty"`
	Log         []string         `json:"log,omitempty"`
	ProjectDir  string           `json:"project_dir,omitempty"`
	DownloadURL string           `json:"download_url,omitempty"`
	Generated   []string         `json:"generated,omitempty"`
	Unresolved  []string         `json:"unresolved,omitempty"`
}

type historyDetail struct {
	models.HistoryEntry
	Result *models.RunResult `json:"result,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	idea, err := readIdea(r)
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	runID := s.launcher.Start(s.baseCtx, idea)
	writeJSONStatus(w, http.StatusAccepted, startResponse{RunID: runID})
}

// readIdea accepts a JSON body or a form with an "idea" (or legacy "prompt")
// field.
func readIdea(r *http.Request) (string, error) {
	var idea string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		idea = req.Idea
	} else {
		idea = r.FormValue("idea")
		if idea == "" {
			idea = r.FormValue("prompt")
		}
	}
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return "", errors.New("idea is required")
	}
	return idea, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeJSONStatus(w, http.StatusNotFound, errorResponse{Error: "run not found"})
		return
	}
	writeJSON(w, buildStatus(snap))
}

func buildStatus(snap models.RunSnapshot) statusResponse {
	resp := statusResponse{
		RunID:    snap.RunID,
		Idea:     snap.Idea,
		Status:   snap.LastProgress(),
		State:    snap.Status,
		Progress: snap.Progress,
	}
	if resp.Status == "" {
		resp.Status = string(snap.Status)
	}
	if res := snap.Result; res != nil {
		resp.Status = string(res.Status)
		resp.Message = res.Message
		resp.Log = res.Log
		resp.ProjectDir = res.OutputDir
		resp.Generated = res.Generated
		resp.Unresolved = res.Unresolved()
		if res.OutputDir != "" {
			resp.DownloadURL = "/api/download/" + snap.RunID
		}
	}
	return resp
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	dir, ok := s.outputDir(runID)
	if !ok {
		http.Error(w, "Project not found or not ready", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := storage.ArchiveDir(dir, &buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	name := filepath.Base(filepath.Clean(dir)) + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.outputDir(r.PathValue("id"))
	if !ok {
		writeJSONStatus(w, http.StatusNotFound, errorResponse{Error: "project not found or not ready"})
		return
	}
	files, err := storage.ListDir(dir)
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, map[string][]string{"files": files})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		entries := []models.HistoryEntry{}
		for _, snap := range s.registry.List() {
			entries = append(entries, snapshotEntry(snap))
		}
		writeJSON(w, entries)
		return
	}

	entries, err := s.history.List()
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, entries)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if s.history == nil {
		snap, ok := s.registry.Snapshot(runID)
		if !ok {
			writeJSONStatus(w, http.StatusNotFound, errorResponse{Error: "run not found"})
			return
		}
		writeJSON(w, historyDetail{HistoryEntry: snapshotEntry(snap), Result: snap.Result})
		return
	}

	entry, err := s.history.Get(runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		writeJSONStatus(w, http.StatusNotFound, errorResponse{Error: "run not found"})
		return
	}
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	detail := historyDetail{HistoryEntry: *entry}
	if result, err := s.history.Result(runID); err == nil {
		detail.Result = result
	}
	writeJSON(w, detail)
}

// handleDeleteHistory is idempotent: deleting an unknown run succeeds.
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if s.history != nil {
		if err := s.history.Delete(runID); err != nil && !errors.Is(err, storage.ErrRunNotFound) {
			writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
	}
	s.registry.Remove(runID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if s.history != nil {
		if err := s.history.Clear(); err != nil {
			writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
	}
	s.registry.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// lookup finds a run in the in-memory registry first and falls back to the
// persisted history for runs from earlier processes.
func (s *Server) lookup(runID string) (models.RunSnapshot, bool) {
	if snap, ok := s.registry.Snapshot(runID); ok {
		return snap, true
	}
	if s.history == nil {
		return models.RunSnapshot{}, false
	}
	entry, err := s.history.Get(runID)
	if err != nil {
		return models.RunSnapshot{}, false
	}
	snap := models.RunSnapshot{
		RunID:     entry.RunID,
		Idea:      entry.Idea,
		Status:    entry.Status,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
	if result, err := s.history.Result(runID); err == nil {
		snap.Result = result
	}
	return snap, true
}

// outputDir returns the output directory of a run that finished successfully.
func (s *Server) outputDir(runID string) (string, bool) {
	snap, ok := s.lookup(runID)
	if !ok || snap.Result == nil || snap.Result.OutputDir == "" {
		return "", false
	}
	return snap.Result.OutputDir, true
}

func snapshotEntry(snap models.RunSnapshot) models.HistoryEntry {
	entry := models.HistoryEntry{
		RunID:     snap.RunID,
		Idea:      snap.Idea,
		Status:    snap.Status,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.Result != nil {
		entry.OutputDir = snap.Result.OutputDir
	}
	return entry
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
