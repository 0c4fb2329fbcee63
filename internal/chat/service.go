package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// historyFetchLimit bounds how many persisted messages are pulled to rebuild
// a session's prompt window on a cache miss.
const historyFetchLimit = 10

// UploadResolver maps a public file URL back to the local path of the stored
// upload, scoped to the owning patient.
type UploadResolver interface {
	FilePathForURL(ctx context.Context, fileURL string, patientID uuid.UUID) (string, error)
}

// SessionStore is the persistence surface the service needs.
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID string, patient PatientRef) (*Session, error)
	EnsureSession(ctx context.Context, sessionID string, patient PatientRef) (*Session, error)
	GetSession(ctx context.Context, sessionID string, patientID uuid.UUID) (*Session, error)
	AppendMessage(ctx context.Context, sessionID string, msg Message) (Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	RecentMessages(ctx context.Context, sessionID string, n int) ([]Message, error)
	ListSessions(ctx context.Context, patientID uuid.UUID) ([]SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string, patientID uuid.UUID) error
}

// HistoryCacher is the optional recent-history cache.
type HistoryCacher interface {
	Save(ctx context.Context, sessionID string, history []Message) error
	Load(ctx context.Context, sessionID string) ([]Message, error)
	Invalidate(ctx context.Context, sessionID string) error
}

// TurnHandler runs one orchestrated inference turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turn Turn) InferenceResult
}

// Service implements the patient-facing chat operations on top of the store,
// the history cache and the turn orchestrator.
type Service struct {
	store        SessionStore
	cache        HistoryCacher
	orchestrator TurnHandler
	uploads      UploadResolver
	logger       *logging.Logger
}

// NewService wires the chat service. The cache and upload resolver may be
// nil; the store and orchestrator may not.
func NewService(store SessionStore, cache HistoryCacher, orchestrator TurnHandler, uploads UploadResolver, logger *logging.Logger) *Service {
	if store == nil {
		panic("chat: session store cannot be nil")
	}
	if orchestrator == nil {
		panic("chat: orchestrator cannot be nil")
	}
	if logger == nil {
		logger = logging.New("info")
	}
	return &Service{
		store:        store,
		cache:        cache,
		orchestrator: orchestrator,
		uploads:      uploads,
		logger:       logger,
	}
}

// StartSession creates a fresh session with a server-generated id.
func (s *Service) StartSession(ctx context.Context, patient PatientRef) (*Session, error) {
	sessionID := fmt.Sprintf("session_%s", uuid.NewString())
	session, err := s.store.CreateSession(ctx, sessionID, patient)
	if err != nil {
		return nil, err
	}
	s.logger.Info("chat session started", "session_id", sessionID, "patient_id", patient.ID)
	return session, nil
}

// SendMessage runs one full chat turn: persist the patient message, run
// inference over it with the session's recent history, persist the AI reply
// and return it. The AI reply is always stored as text.
func (s *Service) SendMessage(ctx context.Context, patient PatientRef, req MessageRequest) (*MessageResponse, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, errors.New("chat: session id is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("chat: message is required")
	}

	modality := req.MessageType
	if modality == "" {
		modality = ModalityText
	}

	session, err := s.store.EnsureSession(ctx, req.SessionID, patient)
	if err != nil {
		return nil, err
	}

	history := s.loadHistory(ctx, session.SessionID)

	// An unresolvable attachment leaves filePath empty; the modality handler
	// answers with its fallback instead of failing the request.
	var filePath string
	if req.FileURL != "" && modality != ModalityText && s.uploads != nil {
		filePath, err = s.uploads.FilePathForURL(ctx, req.FileURL, patient.ID)
		if err != nil {
			s.logger.Warn("failed to resolve upload",
				"session_id", session.SessionID, "file_url", req.FileURL, "error", err)
			filePath = ""
		}
	}

	patientMsg, err := s.store.AppendMessage(ctx, session.SessionID, Message{
		Sender:   SenderPatient,
		Content:  req.Message,
		Modality: modality,
		FileURL:  req.FileURL,
		FileName: req.FileName,
		FileType: req.FileType,
	})
	if err != nil {
		return nil, err
	}

	result := s.orchestrator.HandleTurn(ctx, Turn{
		Message:  req.Message,
		Modality: modality,
		FilePath: filePath,
		History:  history,
	})

	aiMsg, err := s.store.AppendMessage(ctx, session.SessionID, Message{
		Sender:      SenderAI,
		Content:     result.Content,
		Explanation: result.Explanation,
		Modality:    ModalityText,
	})
	if err != nil {
		return nil, err
	}

	s.saveHistory(ctx, session.SessionID, append(history, patientMsg, aiMsg))

	return &MessageResponse{
		Success:     true,
		AIResponse:  result.Content,
		Explanation: result.Explanation,
		MessageID:   aiMsg.ID.String(),
	}, nil
}

// History returns the full message log of a session owned by the patient.
func (s *Service) History(ctx context.Context, sessionID string, patientID uuid.UUID) ([]Message, error) {
	if _, err := s.store.GetSession(ctx, sessionID, patientID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, sessionID)
}

// Sessions lists the patient's sessions, most recently active first.
func (s *Service) Sessions(ctx context.Context, patientID uuid.UUID) ([]SessionSummary, error) {
	return s.store.ListSessions(ctx, patientID)
}

// DeleteSession permanently removes a session and its messages. Uploads that
// were attached to the session remain on disk and in the uploads table.
func (s *Service) DeleteSession(ctx context.Context, sessionID string, patientID uuid.UUID) error {
	if err := s.store.DeleteSession(ctx, sessionID, patientID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, sessionID); err != nil {
			s.logger.Warn("failed to drop cached history", "session_id", sessionID, "error", err)
		}
	}
	return nil
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) []Message {
	if s.cache != nil {
		history, err := s.cache.Load(ctx, sessionID)
		if err == nil {
			return history
		}
		if !errors.Is(err, ErrHistoryMiss) {
			s.logger.Warn("history cache read failed", "session_id", sessionID, "error", err)
		}
	}

	history, err := s.store.RecentMessages(ctx, sessionID, historyFetchLimit)
	if err != nil {
		s.logger.Warn("failed to load session history", "session_id", sessionID, "error", err)
		return nil
	}
	return history
}

func (s *Service) saveHistory(ctx context.Context, sessionID string, history []Message) {
	if s.cache == nil {
		return
	}
	if len(history) > historyFetchLimit {
		history = history[len(history)-historyFetchLimit:]
	}
	if err := s.cache.Save(ctx, sessionID, history); err != nil {
		s.logger.Warn("history cache write failed", "session_id", sessionID, "error", err)
	}
}
