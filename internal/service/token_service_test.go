package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/eligify/eligify/internal/config"
)

func newTokenTestService(t *testing.T, expiry time.Duration) *TokenService {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	svc, err := NewTokenService(&config.JWTConfig{
		SecretKey:    "test-secret-key-that-is-32-bytes!",
		AccessExpiry: expiry,
	}, client, logger)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	return svc
}

func TestTokenServiceRejectsShortSecret(t *testing.T) {
	logger := logrus.New()
	_, err := NewTokenService(&config.JWTConfig{SecretKey: "short"}, nil, logger)
	if err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestTokenIssueAndVerify(t *testing.T) {
	svc := newTokenTestService(t, 12*time.Hour)

	token, err := svc.Issue("9876543210")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token.TokenType != "Bearer" {
		t.Fatalf("expected Bearer token, got %q", token.TokenType)
	}
	if token.ExpiresIn != int64((12 * time.Hour).Seconds()) {
		t.Fatalf("unexpected expiry %d", token.ExpiresIn)
	}

	claims, err := svc.Verify(context.Background(), token.Token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Phone != "9876543210" {
		t.Fatalf("expected phone claim, got %q", claims.Phone)
	}
	if claims.JTI == "" {
		t.Fatal("expected a JTI claim")
	}
}

func TestTokenVerifyRejectsTampering(t *testing.T) {
	svc := newTokenTestService(t, 12*time.Hour)

	token, err := svc.Issue("9876543210")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tampered := token.Token[:len(token.Token)-2] + "xx"
	if _, err := svc.Verify(context.Background(), tampered); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}

	if _, err := svc.Verify(context.Background(), "not-a-token"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}

func TestTokenVerifyRejectsWrongKey(t *testing.T) {
	a := newTokenTestService(t, 12*time.Hour)
	b := newTokenTestService(t, 12*time.Hour)
	// Same secret, so cross-verify must work before the key changes.
	token, err := a.Issue("9876543210")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := b.Verify(context.Background(), token.Token); err != nil {
		t.Fatalf("expected same-key verify to pass, got %v", err)
	}

	b.secretKey = []byte(strings.Repeat("x", 32))
	if _, err := b.Verify(context.Background(), token.Token); err == nil {
		t.Fatal("expected verify under a different key to fail")
	}
}

func TestTokenRevocation(t *testing.T) {
	svc := newTokenTestService(t, 12*time.Hour)

	token, err := svc.Issue("9876543210")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := svc.Verify(context.Background(), token.Token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if err := svc.Revoke(context.Background(), claims); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := svc.Verify(context.Background(), token.Token); err == nil {
		t.Fatal("expected revoked token to be rejected")
	}
}
