package workflow

import (
	"errors"
	"fmt"

	"github.com/eligify/eligify/internal/models"
)

// Sentinel errors shared between the controller and the gateway
// implementations. Services backing the ports return these so the
// controller can tell a recoverable wrong-code apart from a transport
// failure.
var (
	ErrOTPMismatch        = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp not found or expired")
	ErrTooManyOTPAttempts = errors.New("maximum otp attempts exceeded")
	ErrCooldownActive     = errors.New("resend cooldown active")
	ErrOperationInFlight  = errors.New("operation already in flight")
	ErrVerifyBlocked      = errors.New("verification blocked, start a new application")
	ErrAlreadyVerified    = errors.New("otp already verified")
	ErrSessionNotFound    = errors.New("no active session")
	ErrStaleResult        = errors.New("result belongs to a discarded session")
)

// ValidationError is raised before any network call and never advances
// the workflow.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NetworkError wraps a transport or server failure. It is surfaced as a
// retryable condition and leaves the step unchanged.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a missing backend record, e.g. an artifact
// request for an unknown customer.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// DuplicateIdentityError reports a PAN that already belongs to another
// customer record. The form stays editable, but the identity field
// cannot be corrected without restarting.
type DuplicateIdentityError struct {
	PAN string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("identity document %s is already registered", e.PAN)
}

// NotEligibleError is the terminal verdict for an attempt. Only a reset
// lets the session proceed.
type NotEligibleError struct {
	Message string
}

func (e *NotEligibleError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "customer not eligible"
}

// TransitionError reports an event that is not legal for the current
// step, e.g. submitting a profile before the OTP challenge.
type TransitionError struct {
	Step  models.Step
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %s not allowed at step %s", e.Event, e.Step)
}
