package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/businesshub/internal/domain"
	"github.com/yourorg/businesshub/internal/security/auth"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[primitive.ObjectID]*domain.User
	byEmail map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    map[primitive.ObjectID]*domain.User{},
		byEmail: map[string]*domain.User{},
	}
}

func (r *memUserRepo) Insert(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return fmt.Errorf("email %s: %w", user.Email, domain.ErrConflict)
	}
	user.ID = primitive.NewObjectID()
	copied := *user
	r.byID[user.ID] = &copied
	r.byEmail[user.Email] = &copied
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id.Hex(), domain.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id.Hex(), domain.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func newTestAuthService() (*AuthService, *memUserRepo) {
	repo := newMemUserRepo()
	tm := auth.NewTokenManager("test-secret", "businesshub-test")
	return NewAuthService(repo, tm, time.Hour, nil), repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Alice@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Token == "" || reg.User.ID.IsZero() {
		t.Fatalf("expected token and assigned id, got %+v", reg)
	}
	if reg.User.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", reg.User.Email)
	}

	login, err := svc.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Fatal("login resolved a different user")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, "alice@example.com", "another pass")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Wrong password and unknown email fail identically.
	if _, err := svc.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not-an-email", "correct horse"); err == nil {
		t.Fatal("expected rejection of malformed email")
	}
	if _, err := svc.Register(ctx, "alice@example.com", "short"); err == nil {
		t.Fatal("expected rejection of short password")
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	caller := domain.Identity{ID: reg.User.ID, Email: reg.User.Email}

	if err := svc.ChangePassword(ctx, caller, "wrong", "brand new pass"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for wrong old password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, caller, "correct horse", "short"); err == nil {
		t.Fatal("expected rejection of short new password")
	}
	if err := svc.ChangePassword(ctx, caller, "correct horse", "brand new pass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// The old password stops working, the new one logs in.
	if _, err := svc.Login(ctx, "alice@example.com", "correct horse"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected old password to be rejected, got %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "brand new pass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	svc, _ := newTestAuthService()

	caller := domain.Identity{ID: primitive.NewObjectID(), Email: "ghost@example.com"}
	err := svc.ChangePassword(context.Background(), caller, "whatever", "brand new pass")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	tm := auth.NewTokenManager("test-secret", "businesshub-test")
	claims, err := tm.ValidateToken(reg.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != reg.User.ID.Hex() || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}
