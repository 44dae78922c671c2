package service

import (
	"context"
	"fmt"
	"time"

	"github.com/eligify/eligify/internal/config"
	"github.com/eligify/eligify/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// TokenService issues the single bearer token the merchant client
// holds after OTP login. Logout puts the token's JTI on a Redis
// denylist until its natural expiry; there is no refresh rotation.
type TokenService struct {
	secretKey    []byte
	accessExpiry time.Duration
	client       *redis.Client
	logger       *logrus.Logger
}

func NewTokenService(cfg *config.JWTConfig, client *redis.Client, logger *logrus.Logger) (*TokenService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &TokenService{
		secretKey:    secretKey,
		accessExpiry: cfg.AccessExpiry,
		client:       client,
		logger:       logger,
	}, nil
}

type Claims struct {
	Phone string `json:"phone"`
	JTI   string `json:"jti"`
	jwt.RegisteredClaims
}

func revokedKey(jti string) string {
	return "revoked_token:" + jti
}

// Issue signs a fresh access token for a verified merchant phone.
func (s *TokenService) Issue(phoneNumber string) (*models.AccessToken, error) {
	now := time.Now()
	jti := uuid.New().String()

	claims := &Claims{
		Phone: phoneNumber,
		JTI:   jti,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   phoneNumber,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign access token")
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &models.AccessToken{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresIn: int64(s.accessExpiry.Seconds()),
	}, nil
}

// Verify parses and validates a token, rejecting revoked JTIs.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	revoked, err := s.isRevoked(ctx, claims.JTI)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to check token revocation, rejecting token")
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("token has been revoked")
	}

	return claims, nil
}

// Revoke denylists a JTI for the remainder of the token's lifetime.
func (s *TokenService) Revoke(ctx context.Context, claims *Claims) error {
	ttl := s.accessExpiry
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, revokedKey(claims.JTI), "1", ttl).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to revoke token")
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *TokenService) isRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
