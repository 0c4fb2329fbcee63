package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medassist/medassist-ai-platform/internal/ai"
	"github.com/medassist/medassist-ai-platform/internal/auth"
	"github.com/medassist/medassist-ai-platform/internal/chat"
	"github.com/medassist/medassist-ai-platform/internal/uploads"
	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

const inquiryFallback = "I apologize, but I'm having trouble connecting to my AI service right now. Please try again in a moment."

// PatientDirectory looks up patient accounts.
type PatientDirectory interface {
	GetByPatientID(ctx context.Context, patientID string) (*auth.User, error)
	SearchPatients(ctx context.Context, query string) ([]auth.User, error)
}

// ChatReader reads patients' chat history.
type ChatReader interface {
	GetSession(ctx context.Context, sessionID string, patientID uuid.UUID) (*chat.Session, error)
	ListSessions(ctx context.Context, patientID uuid.UUID) ([]chat.SessionSummary, error)
	ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// UploadReader reads patients' uploads.
type UploadReader interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]uploads.UploadRecord, error)
}

// Inquirer answers doctor questions about a patient.
type Inquirer interface {
	CompleteChat(ctx context.Context, messages []ai.ChatMessage, temperature float32, maxTokens int) (string, error)
}

// Handler exposes the doctor API. All routes require the doctor role.
type Handler struct {
	patients  PatientDirectory
	chats     ChatReader
	uploads   UploadReader
	inference Inquirer
	logger    *logging.Logger
}

// NewHandler creates the doctor handler.
func NewHandler(patients PatientDirectory, chats ChatReader, uploadStore UploadReader, inference Inquirer, logger *logging.Logger) *Handler {
	if patients == nil {
		panic("doctor: patient directory cannot be nil")
	}
	if chats == nil {
		panic("doctor: chat reader cannot be nil")
	}
	if uploadStore == nil {
		panic("doctor: upload reader cannot be nil")
	}
	if inference == nil {
		panic("doctor: inference client cannot be nil")
	}
	if logger == nil {
		logger = logging.New("info")
	}
	return &Handler{
		patients:  patients,
		chats:     chats,
		uploads:   uploadStore,
		inference: inference,
		logger:    logger,
	}
}

// Routes mounts the doctor endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/search-patients", h.SearchPatients)
	r.Get("/patient/{patientId}", h.GetPatient)
	r.Get("/patient/{patientId}/chats", h.PatientChats)
	r.Get("/patient/{patientId}/uploads", h.PatientUploads)
	r.Post("/patient/{patientId}/chat", h.PatientChat)
}

// patientView is the doctor-facing shape of a patient account.
type patientView struct {
	ID          uuid.UUID `json:"id"`
	PatientID   string    `json:"patientId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	DateOfBirth string    `json:"dateOfBirth,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func viewOf(user *auth.User) patientView {
	return patientView{
		ID:          user.ID,
		PatientID:   user.PatientID,
		Name:        user.Name,
		Email:       user.Email,
		Phone:       user.Phone,
		DateOfBirth: user.DateOfBirth,
		Gender:      user.Gender,
		CreatedAt:   user.CreatedAt,
	}
}

// SearchPatients matches patients by id, name or email.
func (h *Handler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Search query is required")
		return
	}

	users, err := h.patients.SearchPatients(r.Context(), query)
	if err != nil {
		h.logger.Error("patient search failed", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, "Error searching patients")
		return
	}

	views := make([]patientView, 0, len(users))
	for i := range users {
		views = append(views, viewOf(&users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"patients": views,
	})
}

// GetPatient returns one patient's profile.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.lookupPatient(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"patient": viewOf(patient),
	})
}

// PatientChats returns all of a patient's sessions with their full message
// logs.
func (h *Handler) PatientChats(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.lookupPatient(w, r)
	if !ok {
		return
	}

	summaries, err := h.chats.ListSessions(r.Context(), patient.ID)
	if err != nil {
		h.logger.Error("failed to list patient sessions", "patient_id", patient.PatientID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching patient chat history")
		return
	}

	type sessionLog struct {
		SessionID    string         `json:"sessionId"`
		MessageCount int            `json:"messageCount"`
		Messages     []chat.Message `json:"messages"`
		Status       string         `json:"status"`
		CreatedAt    time.Time      `json:"createdAt"`
		UpdatedAt    time.Time      `json:"updatedAt"`
	}

	logs := make([]sessionLog, 0, len(summaries))
	for _, sum := range summaries {
		messages, err := h.chats.ListMessages(r.Context(), sum.SessionID)
		if err != nil {
			h.logger.Error("failed to load session messages", "session_id", sum.SessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "Error fetching patient chat history")
			return
		}
		if messages == nil {
			messages = []chat.Message{}
		}
		logs = append(logs, sessionLog{
			SessionID:    sum.SessionID,
			MessageCount: len(messages),
			Messages:     messages,
			Status:       sum.Status,
			CreatedAt:    sum.CreatedAt,
			UpdatedAt:    sum.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"patientInfo": patientInfo(patient),
		"chats":       logs,
	})
}

// PatientUploads returns all of a patient's uploads.
func (h *Handler) PatientUploads(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.lookupPatient(w, r)
	if !ok {
		return
	}

	records, err := h.uploads.ListByPatient(r.Context(), patient.ID)
	if err != nil {
		h.logger.Error("failed to list patient uploads", "patient_id", patient.PatientID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching patient uploads")
		return
	}

	if records == nil {
		records = []uploads.UploadRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"patientInfo": patientInfo(patient),
		"uploads":     records,
	})
}

// PatientChat lets a doctor query the AI about a patient, optionally with a
// session transcript as conversation context.
func (h *Handler) PatientChat(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.lookupPatient(w, r)
	if !ok {
		return
	}

	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	contextText := ""
	if req.SessionID != "" {
		if _, err := h.chats.GetSession(r.Context(), req.SessionID, patient.ID); err == nil {
			messages, err := h.chats.ListMessages(r.Context(), req.SessionID)
			if err == nil {
				lines := make([]string, 0, len(messages))
				for _, msg := range messages {
					lines = append(lines, fmt.Sprintf("%s: %s", msg.Sender, msg.Content))
				}
				contextText = strings.Join(lines, "\n")
			}
		}
	}

	prompt := fmt.Sprintf("Doctor inquiry about patient %s (%s): %s", patient.Name, patient.PatientID, req.Message)
	response, err := h.inference.CompleteChat(r.Context(),
		ai.BuildChatMessages(prompt, contextText), ai.AnswerTemperature, ai.AnswerMaxTokens)
	if err != nil {
		h.logger.Error("doctor inquiry failed", "patient_id", patient.PatientID, "error", err)
		response = inquiryFallback
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"response":  response,
		"patientId": patient.PatientID,
	})
}

func (h *Handler) lookupPatient(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	patientID := chi.URLParam(r, "patientId")
	patient, err := h.patients.GetByPatientID(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "Patient not found")
			return nil, false
		}
		h.logger.Error("patient lookup failed", "patient_id", patientID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching patient information")
		return nil, false
	}
	return patient, true
}

func patientInfo(patient *auth.User) map[string]any {
	return map[string]any{
		"patientId": patient.PatientID,
		"name":      patient.Name,
		"email":     patient.Email,
	}
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
