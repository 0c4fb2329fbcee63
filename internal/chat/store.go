package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound reports a lookup for a session that does not exist or
// is owned by another patient.
var ErrSessionNotFound = errors.New("chat: session not found")

// Store persists chat sessions and their append-only message logs in
// PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a session store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// PatientRef identifies the owning patient of a session.
type PatientRef struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// CreateSession inserts a new empty session for the given session id.
func (s *Store) CreateSession(ctx context.Context, sessionID string, patient PatientRef) (*Session, error) {
	now := time.Now().UTC()
	session := &Session{
		ID:           uuid.New(),
		SessionID:    sessionID,
		PatientID:    patient.ID,
		PatientName:  patient.Name,
		PatientEmail: patient.Email,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (
			id, session_id, patient_id, patient_name, patient_email,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.SessionID, session.PatientID, session.PatientName,
		session.PatientEmail, session.Status, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("chat: failed to create session: %w", err)
	}
	return session, nil
}

// EnsureSession finds the session for sessionID or creates it. Concurrent
// first-messages targeting the same id resolve to exactly one row: the insert
// is ON CONFLICT DO NOTHING and losers reselect the winner.
func (s *Store) EnsureSession(ctx context.Context, sessionID string, patient PatientRef) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("chat: session id is required")
	}

	existing, err := s.getBySessionID(ctx, sessionID, patient.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (
			id, session_id, patient_id, patient_name, patient_email,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING
	`, uuid.New(), sessionID, patient.ID, patient.Name, patient.Email, "active", now, now)
	if err != nil {
		return nil, fmt.Errorf("chat: failed to ensure session: %w", err)
	}

	return s.getBySessionID(ctx, sessionID, patient.ID)
}

// GetSession returns the session owned by patientID.
func (s *Store) GetSession(ctx context.Context, sessionID string, patientID uuid.UUID) (*Session, error) {
	return s.getBySessionID(ctx, sessionID, patientID)
}

func (s *Store) getBySessionID(ctx context.Context, sessionID string, patientID uuid.UUID) (*Session, error) {
	var session Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, patient_id, patient_name, patient_email,
		       status, created_at, updated_at
		FROM chat_sessions
		WHERE session_id = $1 AND patient_id = $2
	`, sessionID, patientID).Scan(
		&session.ID, &session.SessionID, &session.PatientID, &session.PatientName,
		&session.PatientEmail, &session.Status, &session.CreatedAt, &session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: failed to get session: %w", err)
	}
	return &session, nil
}

// AppendMessage appends one message row to the session's log. Messages are
// never edited or reordered; concurrent appends interleave by created_at.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg Message) (Message, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (
			id, session_id, sender, content, explanation, modality,
			file_url, file_name, file_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, msg.ID, sessionID, msg.Sender, msg.Content, nullable(msg.Explanation),
		msg.Modality, nullable(msg.FileURL), nullable(msg.FileName),
		nullable(msg.FileType), msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("chat: failed to append message: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET updated_at = $1 WHERE session_id = $2
	`, msg.CreatedAt, sessionID)
	if err != nil {
		return Message{}, fmt.Errorf("chat: failed to touch session: %w", err)
	}
	return msg, nil
}

// ListMessages returns the session's messages in append order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, content, COALESCE(explanation, ''), modality,
		       COALESCE(file_url, ''), COALESCE(file_name, ''), COALESCE(file_type, ''),
		       created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Content, &msg.Explanation,
			&msg.Modality, &msg.FileURL, &msg.FileName, &msg.FileType, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// RecentMessages returns the newest n messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, n int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, content, COALESCE(explanation, ''), modality,
		       COALESCE(file_url, ''), COALESCE(file_name, ''), COALESCE(file_type, ''),
		       created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("chat: failed to load recent messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Content, &msg.Explanation,
			&msg.Modality, &msg.FileURL, &msg.FileName, &msg.FileType, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListSessions returns session summaries for a patient, newest activity first.
func (s *Store) ListSessions(ctx context.Context, patientID uuid.UUID) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.status, s.created_at, s.updated_at,
		       COUNT(m.id) AS message_count
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.session_id
		WHERE s.patient_id = $1
		GROUP BY s.session_id, s.status, s.created_at, s.updated_at
		ORDER BY s.updated_at DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("chat: failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.SessionID, &sum.Status, &sum.CreatedAt, &sum.UpdatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("chat: failed to scan session: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		if summaries[i].MessageCount == 0 {
			continue
		}
		recent, err := s.RecentMessages(ctx, summaries[i].SessionID, 1)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			last := recent[len(recent)-1]
			summaries[i].LastMessage = &last
		}
	}
	return summaries, nil
}

// DeleteSession removes the session and, through the FK cascade, its
// messages. Uploads attached to the session are untouched.
func (s *Store) DeleteSession(ctx context.Context, sessionID string, patientID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_sessions WHERE session_id = $1 AND patient_id = $2
	`, sessionID, patientID)
	if err != nil {
		return fmt.Errorf("chat: failed to delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("chat: failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
