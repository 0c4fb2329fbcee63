package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medassist/medassist-ai-platform/internal/http/middleware"
	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// Handler exposes the patient chat API.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the chat handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("chat: service cannot be nil")
	}
	if logger == nil {
		logger = logging.New("info")
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the chat endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/start", h.Start)
	r.Post("/message", h.Message)
	r.Get("/history/{sessionId}", h.History)
	r.Get("/sessions", h.Sessions)
	r.Delete("/session/{sessionId}", h.Delete)
}

// Start creates a new chat session.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	session, err := h.service.StartSession(r.Context(), patientRef(identity))
	if err != nil {
		h.logger.Error("failed to start chat session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"session": session,
	})
}

// Message runs one chat turn.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := h.service.SendMessage(r.Context(), patientRef(identity), req)
	if err != nil {
		h.logger.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// History returns the full message log of one session.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	messages, err := h.service.History(r.Context(), sessionID, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to load history", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"messages": emptyIfNil(messages),
	})
}

// Sessions lists the caller's sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessions, err := h.service.Sessions(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	if sessions == nil {
		sessions = []SessionSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": sessions,
	})
}

// Delete permanently removes a session.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	if err := h.service.DeleteSession(r.Context(), sessionID, identity.UserID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to delete session", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Chat session deleted",
	})
}

func patientRef(identity middleware.Identity) PatientRef {
	return PatientRef{
		ID:    identity.UserID,
		Name:  identity.Name,
		Email: identity.Email,
	}
}

func emptyIfNil(messages []Message) []Message {
	if messages == nil {
		return []Message{}
	}
	return messages
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
