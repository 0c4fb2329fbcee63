package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "name", "role", "phone", "patient_id",
		"date_of_birth", "gender", "specialization", "license_number",
		"is_verified", "created_at",
	})
}

func TestCreatePatientAllocatesPatientID(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`nextval\('patient_id_seq'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &User{Email: "Jane@Example.com", PasswordHash: "hash", Name: "Jane", Role: RolePatient}
	require.NoError(t, store.Create(context.Background(), user, "tok"))
	assert.Equal(t, "PT000007", user.PatientID)
	assert.Equal(t, "jane@example.com", user.Email)
}

func TestCreateDoctorSkipsPatientID(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &User{Email: "doc@example.com", PasswordHash: "hash", Name: "Dr", Role: RoleDoctor}
	require.NoError(t, store.Create(context.Background(), user, ""))
	assert.Empty(t, user.PatientID)
}

func TestGetByEmailNotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`FROM users WHERE email`).
		WithArgs("nobody@example.com").
		WillReturnRows(userRows())

	_, err := store.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSearchPatients(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE role = 'patient'`).
		WithArgs("%jane%").
		WillReturnRows(userRows().
			AddRow(uuid.New(), "jane@example.com", "hash", "Jane Roe", "patient",
				"", "PT000001", "", "female", "", "", true, now))

	users, err := store.SearchPatients(context.Background(), "jane")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "PT000001", users[0].PatientID)
}

func TestVerifyByTokenNotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE users`).
		WithArgs("bogus").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.VerifyByToken(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
