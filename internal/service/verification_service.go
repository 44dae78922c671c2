package service

import (
	"context"
	"time"

	"github.com/eligify/eligify/internal/repository"
	"github.com/eligify/eligify/internal/workflow"
	"github.com/sirupsen/logrus"
)

// VerificationService implements the workflow's VerificationGateway:
// it runs the passcode check and folds the customer's eligibility
// record into the verify response the resolver classifies.
type VerificationService struct {
	otp       *OTPService
	customers *repository.CustomerRepository
	logger    *logrus.Logger
}

func NewVerificationService(otp *OTPService, customers *repository.CustomerRepository, logger *logrus.Logger) *VerificationService {
	return &VerificationService{
		otp:       otp,
		customers: customers,
		logger:    logger,
	}
}

func (s *VerificationService) SendOTP(ctx context.Context, phoneNumber string) error {
	_, err := s.otp.Generate(ctx, phoneNumber)
	return err
}

func (s *VerificationService) ResendOTP(ctx context.Context, phoneNumber string) error {
	_, err := s.otp.Resend(ctx, phoneNumber)
	return err
}

// VerifyOTP checks the code and, when it matches, attaches the backend
// verdict: known eligible customers get their sanctioned amount, lapsed
// ones an expired marker, unknown phones a bare success that routes to
// the profile form.
func (s *VerificationService) VerifyOTP(ctx context.Context, phoneNumber, code string) (workflow.VerifyResult, error) {
	if err := s.otp.Verify(ctx, phoneNumber, code); err != nil {
		return workflow.VerifyResult{}, err
	}

	customer, err := s.customers.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return workflow.VerifyResult{}, err
	}

	if customer == nil {
		return workflow.VerifyResult{Success: true}, nil
	}

	if !customer.Eligible {
		return workflow.VerifyResult{
			Success: false,
			Message: workflow.MsgNotEligible,
		}, nil
	}

	if customer.EligibilityExpired(time.Now()) {
		return workflow.VerifyResult{
			Success: true,
			Message: workflow.MsgEligibilityExpired,
		}, nil
	}

	return workflow.VerifyResult{
		Success:              true,
		MaxEligibilityAmount: customer.EligibilityAmount,
		TenureDays:           customer.TenureDays,
		CustomerID:           customer.ID,
	}, nil
}

// CooldownRemaining exposes the resend gate for session snapshots.
func (s *VerificationService) CooldownRemaining(ctx context.Context, phoneNumber string) (time.Duration, error) {
	return s.otp.CooldownRemaining(ctx, phoneNumber)
}
