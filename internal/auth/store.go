package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role separates patients from doctors.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// ErrUserNotFound reports a lookup for a user that does not exist.
var ErrUserNotFound = errors.New("auth: user not found")

// ErrEmailTaken reports a registration against an existing email.
var ErrEmailTaken = errors.New("auth: user already exists with this email")

// User is one account row. PasswordHash never leaves this package.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	Phone          string    `json:"phone,omitempty"`
	PatientID      string    `json:"patientId,omitempty"`
	DateOfBirth    string    `json:"dateOfBirth,omitempty"`
	Gender         string    `json:"gender,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	LicenseNumber  string    `json:"-"`
	IsVerified     bool      `json:"isVerified"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store persists user accounts in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a user store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

const userColumns = `
	id, email, password_hash, name, role,
	COALESCE(phone, ''), COALESCE(patient_id, ''), COALESCE(date_of_birth, ''),
	COALESCE(gender, ''), COALESCE(specialization, ''), COALESCE(license_number, ''),
	is_verified, created_at`

// Create inserts a new user. Patients are assigned the next sequential
// patient id in PT%06d form.
func (s *Store) Create(ctx context.Context, user *User, verificationToken string) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	if user.Role == RolePatient && user.PatientID == "" {
		next, err := s.nextPatientNumber(ctx)
		if err != nil {
			return err
		}
		user.PatientID = fmt.Sprintf("PT%06d", next)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, password_hash, name, role, phone, patient_id,
			date_of_birth, gender, specialization, license_number,
			is_verified, verification_token, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, user.ID, user.Email, user.PasswordHash, user.Name, user.Role,
		nullable(user.Phone), nullable(user.PatientID), nullable(user.DateOfBirth),
		nullable(user.Gender), nullable(user.Specialization), nullable(user.LicenseNumber),
		user.IsVerified, nullable(verificationToken), user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "users_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("auth: failed to create user: %w", err)
	}
	return nil
}

func (s *Store) nextPatientNumber(ctx context.Context) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `SELECT nextval('patient_id_seq')`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("auth: failed to allocate patient id: %w", err)
	}
	return next, nil
}

// GetByEmail returns the user with the given email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// GetByID returns the user with the given id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

// GetByPatientID returns the patient with the given public patient id.
func (s *Store) GetByPatientID(ctx context.Context, patientID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE patient_id = $1 AND role = 'patient'
	`, patientID)
	return scanUser(row)
}

// SearchPatients matches patients by name, email or patient id.
func (s *Store) SearchPatients(ctx context.Context, query string) ([]User, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'patient'
		  AND (name ILIKE $1 OR email ILIKE $1 OR patient_id ILIKE $1)
		ORDER BY name ASC
		LIMIT 50
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to search patients: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// VerifyByToken marks the account holding the token as verified and clears
// the token.
func (s *Store) VerifyByToken(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL
		WHERE verification_token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("auth: failed to verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("auth: failed to read verify result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.Role, &user.Phone, &user.PatientID, &user.DateOfBirth,
		&user.Gender, &user.Specialization, &user.LicenseNumber,
		&user.IsVerified, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth: failed to scan user: %w", err)
	}
	return &user, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
