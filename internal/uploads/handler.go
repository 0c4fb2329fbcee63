package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medassist/medassist-ai-platform/internal/http/middleware"
	"github.com/medassist/medassist-ai-platform/internal/media"
	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// RecordStore is the persistence surface the handler needs.
type RecordStore interface {
	Create(ctx context.Context, rec *UploadRecord) error
	SetAnalysis(ctx context.Context, id uuid.UUID, extractedText, aiAnalysis string) error
	ListBySession(ctx context.Context, sessionID string, patientID uuid.UUID) ([]UploadRecord, error)
	Delete(ctx context.Context, id, patientID uuid.UUID) (string, error)
}

// FileProcessor derives the analysis fields for a stored upload.
type FileProcessor interface {
	Process(ctx context.Context, rec *UploadRecord)
}

// Config carries the handler's storage settings.
type Config struct {
	UploadDir     string
	PublicBaseURL string
	MaxFiles      int
	MaxBytes      int64
}

// Handler exposes the patient upload API.
type Handler struct {
	store     RecordStore
	processor FileProcessor
	cfg       Config
	logger    *logging.Logger
}

// NewHandler creates the upload handler. The processor may be nil, in which
// case files are stored without analysis.
func NewHandler(store RecordStore, processor FileProcessor, cfg Config, logger *logging.Logger) *Handler {
	if store == nil {
		panic("uploads: record store cannot be nil")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 5
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 25 << 20
	}
	if logger == nil {
		logger = logging.New("info")
	}
	return &Handler{store: store, processor: processor, cfg: cfg, logger: logger}
}

// Routes mounts the upload endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Upload)
	r.Get("/session/{sessionId}", h.ListSession)
	r.Delete("/{id}", h.Delete)
}

// Upload stores up to MaxFiles multipart files, creates a record per file
// and runs best-effort analysis before responding.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBytes*int64(h.cfg.MaxFiles))
	if err := r.ParseMultipartForm(h.cfg.MaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	if len(files) > h.cfg.MaxFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per upload", h.cfg.MaxFiles))
		return
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		h.logger.Error("failed to create upload dir", "dir", h.cfg.UploadDir, "error", err)
		writeError(w, http.StatusInternalServerError, "Error uploading files")
		return
	}

	var stored []*UploadRecord
	for _, header := range files {
		rec, err := h.storeFile(r.Context(), header, sessionID, identity.UserID)
		if err != nil {
			h.logger.Error("failed to store upload", "file", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "Error uploading files")
			return
		}
		stored = append(stored, rec)
	}

	// Analysis is best-effort and never fails the upload.
	for _, rec := range stored {
		if h.processor == nil {
			continue
		}
		h.processor.Process(r.Context(), rec)
		if rec.ExtractedText == "" && rec.AIAnalysis == "" {
			continue
		}
		if err := h.store.SetAnalysis(r.Context(), rec.ID, rec.ExtractedText, rec.AIAnalysis); err != nil {
			h.logger.Warn("failed to persist upload analysis", "upload_id", rec.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d file(s) uploaded successfully", len(stored)),
		"files":   stored,
	})
}

func (h *Handler) storeFile(ctx context.Context, header *multipart.FileHeader, sessionID string, patientID uuid.UUID) (*UploadRecord, error) {
	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("uploads: failed to open part: %w", err)
	}
	defer src.Close()

	storedName := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(h.cfg.UploadDir, storedName)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("uploads: failed to create file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("uploads: failed to write file: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	rec := &UploadRecord{
		PatientID:    patientID,
		SessionID:    sessionID,
		FileName:     storedName,
		OriginalName: header.Filename,
		FileType:     contentType,
		FileSize:     size,
		FilePath:     path,
		FileURL:      h.fileURL(storedName),
		Category:     media.Categorize(contentType),
	}
	if err := h.store.Create(ctx, rec); err != nil {
		os.Remove(path)
		return nil, err
	}
	return rec, nil
}

func (h *Handler) fileURL(storedName string) string {
	base := strings.TrimSuffix(h.cfg.PublicBaseURL, "/")
	return fmt.Sprintf("%s/uploads/%s", base, storedName)
}

// ListSession returns all uploads the caller attached to a session.
func (h *Handler) ListSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	records, err := h.store.ListBySession(r.Context(), sessionID, identity.UserID)
	if err != nil {
		h.logger.Error("failed to list uploads", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching uploads")
		return
	}

	if records == nil {
		records = []UploadRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"uploads": records,
	})
}

// Delete removes an upload record and its file on disk. A missing file is
// not an error.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload id")
		return
	}

	path, err := h.store.Delete(r.Context(), id, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUploadNotFound) {
			writeError(w, http.StatusNotFound, "Upload not found")
			return
		}
		h.logger.Error("failed to delete upload", "upload_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error deleting upload")
		return
	}

	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("failed to remove upload file", "path", path, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Upload deleted successfully",
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
