package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/database"
	"github.com/user/stocksim/backend/internal/models"
)

// Session is returned by a successful register or login.
type Session struct {
	Token    string             `json:"token"`
	User     models.UserSummary `json:"user"`
	IssuedAt time.Time          `json:"issued_at"`
}

// Service registers and authenticates users.
type Service struct {
	store          database.Store
	tokens         *JWTManager
	initialBalance decimal.Decimal
	log            zerolog.Logger
}

// NewService creates an auth service. New accounts start with
// initialBalance in cash.
func NewService(store database.Store, tokens *JWTManager, initialBalance decimal.Decimal, log zerolog.Logger) *Service {
	return &Service{
		store:          store,
		tokens:         tokens,
		initialBalance: initialBalance,
		log:            log.With().Str("component", "auth").Logger(),
	}
}

// Register creates an account and opens a session for it.
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to process password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword, s.initialBalance)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID.String()).Str("username", username).Msg("user registered")
	return s.session(user)
}

// Login checks credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}
	return s.session(user)
}

// EnsureDemoUser creates the demo account if it does not exist yet.
func (s *Service) EnsureDemoUser(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	existing, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if _, err := s.Register(ctx, username, password); err != nil && !errors.Is(err, models.ErrUsernameTaken) {
		return fmt.Errorf("seed demo user: %w", err)
	}
	s.log.Info().Str("username", username).Msg("demo user ready")
	return nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, err := s.tokens.GenerateJWT(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &Session{
		Token:    token,
		User:     user.Summary(),
		IssuedAt: time.Now(),
	}, nil
}
