package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medassist/medassist-ai-platform/internal/media"
)

// ErrUploadNotFound reports a lookup for an upload that does not exist or is
// owned by another patient.
var ErrUploadNotFound = errors.New("uploads: upload not found")

// UploadRecord is one stored patient file. Category is decided once at
// creation from the declared content type; extracted text and AI analysis
// are filled in best-effort afterwards.
type UploadRecord struct {
	ID            uuid.UUID      `json:"id"`
	PatientID     uuid.UUID      `json:"-"`
	SessionID     string         `json:"sessionId"`
	FileName      string         `json:"-"`
	OriginalName  string         `json:"fileName"`
	FileType      string         `json:"fileType"`
	FileSize      int64          `json:"fileSize"`
	FilePath      string         `json:"-"`
	FileURL       string         `json:"fileUrl"`
	Category      media.Category `json:"category"`
	ExtractedText string         `json:"extractedText,omitempty"`
	AIAnalysis    string         `json:"aiAnalysis,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Store persists upload records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an upload store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// Create inserts a new upload record.
func (s *Store) Create(ctx context.Context, rec *UploadRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (
			id, patient_id, session_id, file_name, original_name, file_type,
			file_size, file_path, file_url, category, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.PatientID, rec.SessionID, rec.FileName, rec.OriginalName,
		rec.FileType, rec.FileSize, rec.FilePath, rec.FileURL, rec.Category, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("uploads: failed to create record: %w", err)
	}
	return nil
}

// SetAnalysis stores the derived extraction and analysis fields.
func (s *Store) SetAnalysis(ctx context.Context, id uuid.UUID, extractedText, aiAnalysis string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE uploads SET extracted_text = $1, ai_analysis = $2 WHERE id = $3
	`, nullable(extractedText), nullable(aiAnalysis), id)
	if err != nil {
		return fmt.Errorf("uploads: failed to store analysis: %w", err)
	}
	return nil
}

const uploadColumns = `
	id, patient_id, session_id, file_name, original_name, file_type,
	file_size, file_path, file_url, category,
	COALESCE(extracted_text, ''), COALESCE(ai_analysis, ''), created_at`

// Get returns the upload owned by patientID.
func (s *Store) Get(ctx context.Context, id, patientID uuid.UUID) (*UploadRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+uploadColumns+`
		FROM uploads
		WHERE id = $1 AND patient_id = $2
	`, id, patientID)
	return scanUpload(row)
}

// ListBySession returns a session's uploads for the owning patient, newest
// first.
func (s *Store) ListBySession(ctx context.Context, sessionID string, patientID uuid.UUID) ([]UploadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+uploadColumns+`
		FROM uploads
		WHERE session_id = $1 AND patient_id = $2
		ORDER BY created_at DESC
	`, sessionID, patientID)
	if err != nil {
		return nil, fmt.Errorf("uploads: failed to list session uploads: %w", err)
	}
	return collectUploads(rows)
}

// ListByPatient returns all of a patient's uploads, newest first.
func (s *Store) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]UploadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+uploadColumns+`
		FROM uploads
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("uploads: failed to list patient uploads: %w", err)
	}
	return collectUploads(rows)
}

// FilePathForURL maps a public file URL back to the stored file's local
// path, scoped to the owning patient.
func (s *Store) FilePathForURL(ctx context.Context, fileURL string, patientID uuid.UUID) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `
		SELECT file_path FROM uploads WHERE file_url = $1 AND patient_id = $2
	`, fileURL, patientID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUploadNotFound
	}
	if err != nil {
		return "", fmt.Errorf("uploads: failed to resolve file url: %w", err)
	}
	return path, nil
}

// Delete removes the upload record and returns the stored file path so the
// caller can remove the file from disk.
func (s *Store) Delete(ctx context.Context, id, patientID uuid.UUID) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM uploads WHERE id = $1 AND patient_id = $2 RETURNING file_path
	`, id, patientID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUploadNotFound
	}
	if err != nil {
		return "", fmt.Errorf("uploads: failed to delete record: %w", err)
	}
	return path, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*UploadRecord, error) {
	var rec UploadRecord
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.SessionID, &rec.FileName,
		&rec.OriginalName, &rec.FileType, &rec.FileSize, &rec.FilePath,
		&rec.FileURL, &rec.Category, &rec.ExtractedText, &rec.AIAnalysis, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("uploads: failed to scan record: %w", err)
	}
	return &rec, nil
}

func collectUploads(rows *sql.Rows) ([]UploadRecord, error) {
	defer rows.Close()

	var records []UploadRecord
	for rows.Next() {
		rec, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
