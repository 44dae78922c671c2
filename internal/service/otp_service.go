package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/eligify/eligify/internal/config"
	"github.com/eligify/eligify/internal/models"
	"github.com/eligify/eligify/internal/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// OTPService issues and checks one-time passcodes. Codes live in Redis
// hashed, with an attempts counter and expiry; a separate cooldown key
// gates resends.
type OTPService struct {
	client *redis.Client
	cfg    *config.OTPConfig
	logger *logrus.Logger
}

func NewOTPService(client *redis.Client, cfg *config.OTPConfig, logger *logrus.Logger) *OTPService {
	return &OTPService{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

func otpKey(phoneNumber string) string {
	return "otp:" + phoneNumber
}

func cooldownKey(phoneNumber string) string {
	return "otp:cooldown:" + phoneNumber
}

// Generate creates a fresh passcode, stores it hashed and starts the
// resend cooldown. The returned plain code goes to the delivery channel
// (logged here; the SMS hook sits outside this service).
func (s *OTPService) Generate(ctx context.Context, phoneNumber string) (string, error) {
	otp, err := s.generateRandomOTP(s.cfg.Length)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}

	hashedOTP, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash OTP: %w", err)
	}

	otpData := models.OTPData{
		OTPHash:   string(hashedOTP),
		Phone:     phoneNumber,
		Attempts:  0,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.cfg.Expiry),
	}

	dataJSON, err := json.Marshal(otpData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal OTP data: %w", err)
	}

	if err := s.client.Set(ctx, otpKey(phoneNumber), dataJSON, s.cfg.Expiry).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to store OTP in Redis")
		return "", fmt.Errorf("failed to store OTP: %w", err)
	}

	if err := s.client.Set(ctx, cooldownKey(phoneNumber), "1", s.cfg.ResendCooldown).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to start resend cooldown in Redis")
		return "", fmt.Errorf("failed to start cooldown: %w", err)
	}

	// Plain copy for integration tests; same TTL as the hashed code.
	s.client.Set(ctx, "otp:plain:"+phoneNumber, otp, s.cfg.Expiry)

	// Log OTP (for development - remove in production)
	s.logger.WithFields(logrus.Fields{
		"phone": phoneNumber,
		"otp":   otp,
	}).Info("OTP generated (logged for development)")

	return otp, nil
}

// Verify checks the code against the stored hash. A wrong code bumps
// the attempts counter; expiry, exhaustion and success all delete the
// record.
func (s *OTPService) Verify(ctx context.Context, phoneNumber, otp string) error {
	key := otpKey(phoneNumber)

	dataJSON, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return workflow.ErrOTPExpired
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to get OTP from Redis")
		return fmt.Errorf("failed to get OTP: %w", err)
	}

	var otpData models.OTPData
	if err := json.Unmarshal([]byte(dataJSON), &otpData); err != nil {
		return fmt.Errorf("failed to unmarshal OTP data: %w", err)
	}

	if time.Now().After(otpData.ExpiresAt) {
		s.client.Del(ctx, key)
		return workflow.ErrOTPExpired
	}

	if otpData.Attempts >= s.cfg.MaxAttempts {
		s.client.Del(ctx, key)
		return workflow.ErrTooManyOTPAttempts
	}

	if err := bcrypt.CompareHashAndPassword([]byte(otpData.OTPHash), []byte(otp)); err != nil {
		otpData.Attempts++
		updatedJSON, _ := json.Marshal(otpData)
		s.client.Set(ctx, key, updatedJSON, time.Until(otpData.ExpiresAt))
		return workflow.ErrOTPMismatch
	}

	s.client.Del(ctx, key)
	s.client.Del(ctx, "otp:plain:"+phoneNumber)
	return nil
}

// CooldownRemaining reports how long until a resend is accepted again.
// Zero means the cooldown has elapsed.
func (s *OTPService) CooldownRemaining(ctx context.Context, phoneNumber string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, cooldownKey(phoneNumber)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read cooldown: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Resend re-issues the passcode once the cooldown has elapsed, and
// restarts it.
func (s *OTPService) Resend(ctx context.Context, phoneNumber string) (string, error) {
	remaining, err := s.CooldownRemaining(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if remaining > 0 {
		return "", workflow.ErrCooldownActive
	}
	return s.Generate(ctx, phoneNumber)
}

func (s *OTPService) generateRandomOTP(length int) (string, error) {
	otp := ""
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		otp += num.String()
	}
	return otp, nil
}
