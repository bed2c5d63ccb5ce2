package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/businesshub/internal/domain"
	"github.com/yourorg/businesshub/internal/security/auth"
)

// AuthService resolves credentials into identities. It sits outside the
// membership core: every other operation receives an already-resolved
// domain.Identity and never touches passwords or tokens.
type AuthService struct {
	userRepo      domain.UserRepository
	tokenManager  *auth.TokenManager
	tokenLifetime time.Duration
	logger        *slog.Logger
}

func NewAuthService(userRepo domain.UserRepository, tokenManager *auth.TokenManager, tokenLifetime time.Duration, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		userRepo:      userRepo,
		tokenManager:  tokenManager,
		tokenLifetime: tokenLifetime,
		logger:        logger,
	}
}

// LoginResult is returned by Register and Login.
type LoginResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Register creates an account and returns a signed token. A duplicate email
// fails Conflict through the store's unique index.
func (s *AuthService) Register(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("a valid email is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.userRepo.Insert(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokenManager.GenerateToken(user.ID.Hex(), user.Email, s.tokenLifetime)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID.Hex()))
	return &LoginResult{Token: token, User: user}, nil
}

// Login verifies credentials and returns a signed token. Unknown email and
// wrong password collapse into the same Unauthenticated error so login
// cannot be used to probe which emails exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthenticated)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthenticated)
	}

	token, err := s.tokenManager.GenerateToken(user.ID.Hex(), user.Email, s.tokenLifetime)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID.Hex()))
	return &LoginResult{Token: token, User: user}, nil
}

// ChangePassword re-hashes the caller's password after verifying the old
// one. A wrong old password fails Unauthenticated, same as a bad login.
func (s *AuthService) ChangePassword(ctx context.Context, caller domain.Identity, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return errors.New("new password must be at least 8 characters")
	}

	user, err := s.userRepo.GetByID(ctx, caller.ID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthenticated)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	s.logger.Info("user changed password", slog.String("user_id", user.ID.Hex()))
	return nil
}

// GetUser loads a user by identity. Used by profile reads.
func (s *AuthService) GetUser(ctx context.Context, caller domain.Identity) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, caller.ID)
}
