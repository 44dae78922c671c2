package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eligify/eligify/internal/config"
	"github.com/eligify/eligify/internal/models"
	"github.com/eligify/eligify/internal/repository"
	"github.com/eligify/eligify/internal/workflow"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EligibilityService decides whether a submitted profile qualifies and
// records the verdict as a customer record. The sanctioned amount is a
// bounded income multiple.
type EligibilityService struct {
	customers *repository.CustomerRepository
	cfg       *config.EligibilityConfig
	logger    *logrus.Logger
}

func NewEligibilityService(customers *repository.CustomerRepository, cfg *config.EligibilityConfig, logger *logrus.Logger) *EligibilityService {
	return &EligibilityService{
		customers: customers,
		cfg:       cfg,
		logger:    logger,
	}
}

// Check implements the workflow's EligibilityChecker. The client
// validates the same constraints up front, but the backend stays the
// final authority: income below the floor is rejected and a duplicate
// PAN surfaces as DuplicateIdentityError.
func (s *EligibilityService) Check(ctx context.Context, phoneNumber string, profile models.Profile) (workflow.CheckResult, error) {
	if profile.Income < s.cfg.MinIncome {
		return workflow.CheckResult{
			Eligible: false,
			Message:  fmt.Sprintf("Income below the minimum of %d", s.cfg.MinIncome),
		}, nil
	}

	dob, err := profile.DateOfBirth()
	if err != nil {
		return workflow.CheckResult{}, fmt.Errorf("invalid profile: %w", err)
	}

	now := time.Now()
	customer := &models.Customer{
		ID:                   uuid.New().String(),
		PhoneNumber:          phoneNumber,
		FirstName:            profile.FirstName,
		LastName:             profile.LastName,
		PAN:                  profile.PAN,
		Pincode:              profile.Pincode,
		DateOfBirth:          dob.Format("2006-01-02"),
		Income:               profile.Income,
		Eligible:             true,
		EligibilityAmount:    s.sanctionedAmount(profile.Income),
		TenureDays:           s.cfg.TenureDays,
		EligibilityExpiresAt: now.Add(s.cfg.Validity),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	// Re-qualification after an expired verdict reuses the existing
	// record; its PAN marker already exists and must not count as a
	// duplicate.
	existing, err := s.customers.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return workflow.CheckResult{}, err
	}
	if existing != nil && existing.PAN == profile.PAN {
		customer.ID = existing.ID
		customer.CreatedAt = existing.CreatedAt
		if err := s.customers.Update(ctx, customer); err != nil {
			return workflow.CheckResult{}, err
		}
	} else {
		if err := s.customers.Create(ctx, customer); err != nil {
			if errors.Is(err, repository.ErrDuplicatePAN) {
				return workflow.CheckResult{}, &workflow.DuplicateIdentityError{PAN: profile.PAN}
			}
			return workflow.CheckResult{}, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"phone":       phoneNumber,
		"customer_id": customer.ID,
		"amount":      customer.EligibilityAmount,
	}).Info("Eligibility check passed")

	return workflow.CheckResult{
		Eligible:   true,
		CustomerID: customer.ID,
		Amount:     customer.EligibilityAmount,
		TenureDays: customer.TenureDays,
	}, nil
}

func (s *EligibilityService) sanctionedAmount(income int64) int64 {
	amount := income * s.cfg.IncomeMultiple
	if amount > s.cfg.MaxAmount {
		amount = s.cfg.MaxAmount
	}
	return amount
}
