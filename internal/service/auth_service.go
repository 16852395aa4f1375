package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/BhargavRaval15/url-shortner/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnauthenticated    = errors.New("please authenticate")
)

// UserStore is the persistence contract of AuthService
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Authenticator turns a bearer token into the id of an existing user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

type AuthServiceInterface interface {
	Authenticator
	Login(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error)
	Register(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error)
}

// AuthService issues and verifies HS256 tokens for password accounts
type AuthService struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthService(users UserStore, secret string, ttl time.Duration, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		logger: logger,
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs a token for it
func (s *AuthService) Register(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	user, err := s.createUser(ctx, normalizeEmail(creds.Email), creds.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks the password and signs a token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// Authenticate verifies token and checks that its subject still exists
func (s *AuthService) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}

	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, ErrUnauthenticated
		}
		return uuid.Nil, storeError(err)
	}
	return id, nil
}

// EnsureDefaultUser creates the configured bootstrap account once. An
// empty email disables it.
func (s *AuthService) EnsureDefaultUser(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return storeError(err)
	}

	if _, err := s.createUser(ctx, email, password); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil
		}
		return fmt.Errorf("create default user: %w", err)
	}
	s.logger.InfoContext(ctx, "default user created", "email", email)
	return nil
}

func (s *AuthService) createUser(ctx context.Context, email, password string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, email, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, storeError(err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*model.AuthResponse, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{
		Token: signed,
		User:  model.UserInfo{ID: user.ID.String(), Email: user.Email},
	}, nil
}

var _ AuthServiceInterface = (*AuthService)(nil)
