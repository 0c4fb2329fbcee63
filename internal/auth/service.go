package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medassist/medassist-ai-platform/internal/http/middleware"
	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// ErrInvalidCredentials reports a failed login. Unknown email and wrong
// password are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrValidation reports missing or malformed registration input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "auth: " + e.Reason
}

// UserStore is the persistence surface the service needs.
type UserStore interface {
	Create(ctx context.Context, user *User, verificationToken string) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	VerifyByToken(ctx context.Context, token string) error
}

// VerificationMailer sends the post-registration verification email.
type VerificationMailer interface {
	SendVerification(ctx context.Context, email, name, token string)
}

// RegisterRequest is the payload of POST /auth/register.
type RegisterRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Phone          string `json:"phone,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	LicenseNumber  string `json:"licenseNumber,omitempty"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	Gender         string `json:"gender,omitempty"`
}

// Service implements registration, login and token issuing.
type Service struct {
	store     UserStore
	mailer    VerificationMailer
	jwtSecret string
	jwtExpiry time.Duration
	logger    *logging.Logger
}

// NewService wires the auth service. The mailer may be nil.
func NewService(store UserStore, mailer VerificationMailer, jwtSecret string, jwtExpiry time.Duration, logger *logging.Logger) *Service {
	if store == nil {
		panic("auth: user store cannot be nil")
	}
	if jwtSecret == "" {
		panic("auth: jwt secret cannot be empty")
	}
	if jwtExpiry <= 0 {
		jwtExpiry = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = logging.New("info")
	}
	return &Service{
		store:     store,
		mailer:    mailer,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		logger:    logger,
	}
}

// Register creates an account and returns the user with a signed token. The
// verification email is sent best-effort.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, string, error) {
	if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
		return nil, "", &ValidationError{Reason: "email, password, name and role are required"}
	}
	if req.Role != RolePatient && req.Role != RoleDoctor {
		return nil, "", &ValidationError{Reason: "role must be patient or doctor"}
	}
	if req.Role == RoleDoctor && (req.Specialization == "" || req.LicenseNumber == "") {
		return nil, "", &ValidationError{Reason: "specialization and license number are required for doctors"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("auth: failed to hash password: %w", err)
	}

	user := &User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         req.Role,
		Phone:        req.Phone,
	}
	switch req.Role {
	case RoleDoctor:
		user.Specialization = req.Specialization
		user.LicenseNumber = req.LicenseNumber
	case RolePatient:
		user.DateOfBirth = req.DateOfBirth
		user.Gender = req.Gender
	}

	verificationToken, err := randomToken()
	if err != nil {
		return nil, "", err
	}
	if err := s.store.Create(ctx, user, verificationToken); err != nil {
		return nil, "", err
	}

	if s.mailer != nil {
		s.mailer.SendVerification(ctx, user.Email, user.Name, verificationToken)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, token, nil
}

// Login checks credentials and returns the user with a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, "", &ValidationError{Reason: "email and password are required"}
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Me returns the account behind an authenticated identity.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.store.GetByID(ctx, userID)
}

// VerifyEmail consumes a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return &ValidationError{Reason: "verification token is required"}
	}
	return s.store.VerifyByToken(ctx, token)
}

func (s *Service) issueToken(user *User) (string, error) {
	now := time.Now()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
		PatientID: user.PatientID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
