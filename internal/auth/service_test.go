package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/medassist/medassist-ai-platform/internal/http/middleware"
)

type memoryUserStore struct {
	byEmail map[string]*User
	byToken map[string]*User
	counter int
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{
		byEmail: map[string]*User{},
		byToken: map[string]*User{},
	}
}

func (m *memoryUserStore) Create(_ context.Context, user *User, verificationToken string) error {
	if _, ok := m.byEmail[user.Email]; ok {
		return ErrEmailTaken
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == RolePatient && user.PatientID == "" {
		m.counter++
		user.PatientID = fmt.Sprintf("PT%06d", m.counter)
	}
	m.byEmail[user.Email] = user
	if verificationToken != "" {
		m.byToken[verificationToken] = user
	}
	return nil
}

func (m *memoryUserStore) GetByEmail(_ context.Context, email string) (*User, error) {
	if user, ok := m.byEmail[email]; ok {
		return user, nil
	}
	return nil, ErrUserNotFound
}

func (m *memoryUserStore) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	for _, user := range m.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memoryUserStore) VerifyByToken(_ context.Context, token string) error {
	user, ok := m.byToken[token]
	if !ok {
		return ErrUserNotFound
	}
	user.IsVerified = true
	delete(m.byToken, token)
	return nil
}

type recordingMailer struct {
	emails []string
	tokens []string
}

func (m *recordingMailer) SendVerification(_ context.Context, email, _, token string) {
	m.emails = append(m.emails, email)
	m.tokens = append(m.tokens, token)
}

func newTestService(store UserStore, mailer VerificationMailer) *Service {
	return NewService(store, mailer, "secret", time.Hour, nil)
}

func TestRegisterPatient(t *testing.T) {
	store := newMemoryUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	user, token, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "jane@example.com",
		Password: "hunter22",
		Name:     "Jane Roe",
		Role:     RolePatient,
		Gender:   "female",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.PatientID)
	assert.False(t, user.IsVerified)
	require.Len(t, mailer.emails, 1)
	assert.Equal(t, "jane@example.com", mailer.emails[0])

	// Password is stored hashed.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter22")))

	// Token is a valid patient JWT.
	claims := mw.Claims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "patient", claims.Role)
	assert.Equal(t, user.PatientID, claims.PatientID)
}

func TestRegisterDoctorRequiresCredentials(t *testing.T) {
	svc := newTestService(newMemoryUserStore(), nil)

	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "doc@example.com",
		Password: "pw",
		Name:     "Dr. Smith",
		Role:     RoleDoctor,
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Reason, "specialization")
}

func TestRegisterDoctor(t *testing.T) {
	svc := newTestService(newMemoryUserStore(), nil)

	user, _, err := svc.Register(context.Background(), RegisterRequest{
		Email:          "doc@example.com",
		Password:       "pw123456",
		Name:           "Dr. Smith",
		Role:           RoleDoctor,
		Specialization: "Dermatology",
		LicenseNumber:  "LIC-42",
	})
	require.NoError(t, err)
	assert.Empty(t, user.PatientID)
	assert.Equal(t, "Dermatology", user.Specialization)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	svc := newTestService(newMemoryUserStore(), nil)

	_, _, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.c"})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc := newTestService(newMemoryUserStore(), nil)

	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "a@b.c", Password: "pw", Name: "A", Role: "admin",
	})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(newMemoryUserStore(), nil)
	req := RegisterRequest{Email: "jane@example.com", Password: "pw", Name: "Jane", Role: RolePatient}

	_, _, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc := newTestService(newMemoryUserStore(), nil)
	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "jane@example.com", Password: "hunter22", Name: "Jane", Role: RolePatient,
	})
	require.NoError(t, err)

	user, token, err := svc.Login(context.Background(), "jane@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(context.Background(), "jane@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyEmail(t *testing.T) {
	store := newMemoryUserStore()
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	user, _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "jane@example.com", Password: "pw", Name: "Jane", Role: RolePatient,
	})
	require.NoError(t, err)
	require.Len(t, mailer.tokens, 1)

	require.NoError(t, svc.VerifyEmail(context.Background(), mailer.tokens[0]))
	assert.True(t, user.IsVerified)

	err = svc.VerifyEmail(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
