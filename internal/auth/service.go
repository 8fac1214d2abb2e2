// Package auth handles merchant accounts: registration, password login and
// session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/internal/store"
	"github.com/todaycapital/statementlens/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrMissingCredentials = errors.New("email and password are required")
)

const bcryptCost = 10

// Session is returned by Register and Login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Registration is the input to Register.
type Registration struct {
	Email        string
	Password     string
	BusinessName *string
	Phone        *string
}

// Service implements account operations on top of the store.
type Service struct {
	store  store.Store
	tokens *Tokens
}

// NewService creates a Service.
func NewService(s store.Store, tokens *Tokens) *Service {
	return &Service{store: s, tokens: tokens}
}

// Register creates a user and signs them in.
func (s *Service) Register(ctx context.Context, reg Registration) (*Session, error) {
	email := normalizeEmail(reg.Email)
	if email == "" || reg.Password == "" {
		return nil, ErrMissingCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	ts := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		BusinessName: blankToNil(reg.BusinessName),
		Phone:        blankToNil(reg.Phone),
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return s.session(user)
}

// Login checks a password and signs the user in.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// Authenticate resolves a session token to an existing user id.
func (s *Service) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := s.store.GetUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("%w: user not found", ErrInvalidToken)
		}
		return uuid.Nil, err
	}
	return id, nil
}

// Me returns the user with id.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateProfile changes the optional profile fields. Nil fields are left as is.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, update store.ProfileUpdate) (*models.User, error) {
	return s.store.UpdateUserProfile(ctx, id, update)
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
