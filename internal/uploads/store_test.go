package uploads

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/medassist-ai-platform/internal/media"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func uploadRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "patient_id", "session_id", "file_name", "original_name", "file_type",
		"file_size", "file_path", "file_url", "category", "extracted_text",
		"ai_analysis", "created_at",
	})
}

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec(`INSERT INTO uploads`).WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &UploadRecord{
		PatientID: uuid.New(),
		SessionID: "sess-1",
		Category:  media.CategoryImage,
	}
	require.NoError(t, store.Create(context.Background(), rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestListBySession(t *testing.T) {
	store, mock := newTestStore(t)
	patientID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE session_id = .* AND patient_id =`).
		WithArgs("sess-1", patientID).
		WillReturnRows(uploadRows().
			AddRow(uuid.New(), patientID, "sess-1", "abc.pdf", "report.pdf",
				"application/pdf", int64(1024), "uploads/abc.pdf",
				"http://localhost:8080/uploads/abc.pdf", "document",
				"extracted", "summary", now))

	records, err := store.ListBySession(context.Background(), "sess-1", patientID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, media.CategoryDocument, records[0].Category)
	assert.Equal(t, "report.pdf", records[0].OriginalName)
	assert.Equal(t, "summary", records[0].AIAnalysis)
}

func TestFilePathForURL(t *testing.T) {
	store, mock := newTestStore(t)
	patientID := uuid.New()

	mock.ExpectQuery(`SELECT file_path FROM uploads`).
		WithArgs("http://localhost:8080/uploads/abc.jpg", patientID).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("uploads/abc.jpg"))

	path, err := store.FilePathForURL(context.Background(), "http://localhost:8080/uploads/abc.jpg", patientID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/abc.jpg", path)
}

func TestFilePathForURLNotFound(t *testing.T) {
	store, mock := newTestStore(t)
	patientID := uuid.New()

	mock.ExpectQuery(`SELECT file_path FROM uploads`).
		WithArgs("http://localhost:8080/uploads/missing.jpg", patientID).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}))

	_, err := store.FilePathForURL(context.Background(), "http://localhost:8080/uploads/missing.jpg", patientID)
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestDeleteReturnsStoredPath(t *testing.T) {
	store, mock := newTestStore(t)
	id, patientID := uuid.New(), uuid.New()

	mock.ExpectQuery(`DELETE FROM uploads`).
		WithArgs(id, patientID).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("uploads/abc.jpg"))

	path, err := store.Delete(context.Background(), id, patientID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/abc.jpg", path)
}

func TestDeleteNotFound(t *testing.T) {
	store, mock := newTestStore(t)
	id, patientID := uuid.New(), uuid.New()

	mock.ExpectQuery(`DELETE FROM uploads`).
		WithArgs(id, patientID).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}))

	_, err := store.Delete(context.Background(), id, patientID)
	assert.ErrorIs(t, err, ErrUploadNotFound)
}
