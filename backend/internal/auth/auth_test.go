package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/database"
	"github.com/user/stocksim/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	hashCost = bcrypt.MinCost
}

func newTestService(t *testing.T) (*Service, *JWTManager) {
	t.Helper()
	tokens, err := NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}
	return NewService(database.NewMemoryStore(), tokens, decimal.NewFromInt(100000), zerolog.Nop()), tokens
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPasswordHash("hunter2", hash) || CheckPasswordHash("hunter3", hash) {
		t.Fatal("CheckPasswordHash gave the wrong answer")
	}
	other, _ := HashPassword("hunter2")
	if other == hash {
		t.Fatal("hashes are not salted")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatal("empty password accepted")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m, _ := NewJWTManager("secret", time.Hour)
	id := uuid.New()

	token, err := m.GenerateJWT(id, "alice")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	claims, err := m.ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
	if claims.UserID != id || claims.Username != "alice" {
		t.Fatalf("claims=%+v, unexpected", claims)
	}

	other, _ := NewJWTManager("different", time.Hour)
	if _, err := other.ValidateJWT(token); err == nil {
		t.Fatal("token accepted with the wrong secret")
	}

	expired, _ := NewJWTManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.GenerateJWT(id, "alice")
	if _, err := m.ValidateJWT(old); err == nil {
		t.Fatal("expired token accepted")
	}

	if _, err := NewJWTManager("", time.Hour); err == nil {
		t.Fatal("empty secret accepted")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newTestService(t)

	sess, err := svc.Register(ctx, " alice ", "pw123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if sess.User.Username != "alice" || !sess.User.Balance.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("user=%+v, unexpected", sess.User)
	}
	claims, err := tokens.ValidateJWT(sess.Token)
	if err != nil || claims.UserID != sess.User.ID {
		t.Fatalf("session token invalid: claims=%+v err=%v", claims, err)
	}

	if _, err := svc.Register(ctx, "alice", "other"); !errors.Is(err, models.ErrUsernameTaken) {
		t.Fatalf("duplicate err=%v, expected ErrUsernameTaken", err)
	}

	if _, err := svc.Login(ctx, "alice", "pw123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	for _, tc := range []struct{ user, pass string }{{"alice", "wrong"}, {"bob", "pw123"}} {
		if _, err := svc.Login(ctx, tc.user, tc.pass); !errors.Is(err, models.ErrInvalidCredentials) {
			t.Fatalf("Login(%s,%s) err=%v, expected ErrInvalidCredentials", tc.user, tc.pass, err)
		}
	}
}

func TestEnsureDemoUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for i := 0; i < 2; i++ {
		if err := svc.EnsureDemoUser(ctx, "demo", "demo123"); err != nil {
			t.Fatalf("EnsureDemoUser attempt %d failed: %v", i, err)
		}
	}
	if _, err := svc.Login(ctx, "demo", "demo123"); err != nil {
		t.Fatalf("demo login failed: %v", err)
	}
	if err := svc.EnsureDemoUser(ctx, "", ""); err != nil {
		t.Fatalf("disabled demo user returned %v", err)
	}
}
