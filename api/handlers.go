package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/theimaginaryfoundation/chat-organizer/organize"
)

const maxUploadBytes = 256 << 20

const (
	minConcurrency     = 1
	maxConcurrency     = 8
	defaultConcurrency = 4
)

// Handler serves the organize API. One instance is shared by all requests.
type Handler struct {
	jobs    *organize.JobStore
	keys    *KeyStore
	runner  *organize.Runner
	logger  *slog.Logger
	tempDir string
}

// NewHandler wires the API against its collaborators. An empty tempDir uses
// the system default; a nil logger selects slog's default.
func NewHandler(jobs *organize.JobStore, keys *KeyStore, runner *organize.Runner, logger *slog.Logger, tempDir string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{jobs: jobs, keys: keys, runner: runner, logger: logger, tempDir: tempDir}
}

// Register installs the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register-key", h.handleRegisterKey)
	mux.HandleFunc("POST /api/organize", h.handleOrganize)
	mux.HandleFunc("GET /api/progress/{id}", h.handleProgress)
	mux.HandleFunc("GET /api/result/{id}", h.handleResult)
}

// handleRegisterKey stores an API key behind a short-lived token so the key
// itself never rides along on job submissions.
func (h *Handler) handleRegisterKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !strings.HasPrefix(body.APIKey, "sk-") {
		writeError(w, http.StatusBadRequest, "Invalid API key")
		return
	}

	token, err := h.keys.Register(body.APIKey)
	if err != nil {
		h.logger.Error("key registration failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key_token":   token,
		"ttl_seconds": int(h.keys.TTL().Seconds()),
	})
}

// handleOrganize accepts a multipart export upload, creates the job, and
// spawns its runner goroutine.
func (h *Handler) handleOrganize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed multipart request")
		return
	}

	mode := organize.ParseMode(r.FormValue("organize_mode"))

	var apiKey string
	if mode == organize.ModeCategory {
		token := r.Header.Get("X-Key-Token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Missing key token. Register your key first.")
			return
		}
		var ok bool
		apiKey, ok = h.keys.Resolve(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Key token invalid or expired. Please re-enter your key.")
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	tempPath, err := h.saveUpload(file)
	if err != nil {
		h.logger.Error("failed to persist upload", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var categories []string
	if raw := r.FormValue("categories"); raw != "" {
		// A malformed custom-category payload falls back to the defaults
		// rather than rejecting the whole submission.
		if err := json.Unmarshal([]byte(raw), &categories); err != nil {
			categories = nil
		}
	}

	batchSize := organize.ClampBatchSize(formInt(r, "batch_size", organize.DefaultBatchSize))
	concurrency := clampInt(formInt(r, "max_concurrency", defaultConcurrency), minConcurrency, maxConcurrency)

	jobID := uuid.NewString()
	if err := h.jobs.Create(jobID); err != nil {
		h.logger.Error("job creation failed", "job_id", jobID, "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	params := organize.RunParams{
		Mode:           mode,
		APIKey:         apiKey,
		InputPath:      tempPath,
		Categories:     categories,
		BatchSize:      batchSize,
		MaxConcurrency: concurrency,
	}
	go h.runner.Run(context.Background(), jobID, params)

	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID})
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobs.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown job id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    job.Status,
		"progress":  job.Progress,
		"processed": job.Processed,
		"total":     job.Total,
		"message":   job.Message,
	})
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobs.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown job id")
		return
	}
	switch job.Status {
	case organize.JobError:
		writeError(w, http.StatusInternalServerError, job.Error)
	case organize.JobDone:
		writeJSON(w, http.StatusOK, job.Result)
	default:
		writeError(w, http.StatusConflict, "Job not finished")
	}
}

// saveUpload spools the uploaded export into a temp file owned by the job.
func (h *Handler) saveUpload(src io.Reader) (string, error) {
	tmp, err := os.CreateTemp(h.tempDir, "chatorg_upload_*.json")
	if err != nil {
		return "", err
	}
	tempPath := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

func formInt(r *http.Request, field string, fallback int) int {
	v := r.FormValue(field)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
