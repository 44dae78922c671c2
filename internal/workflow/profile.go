package workflow

import (
	"fmt"
	"regexp"
	"time"

	"github.com/eligify/eligify/internal/models"
)

var (
	phonePattern   = regexp.MustCompile(`^[0-9]{10}$`)
	namePattern    = regexp.MustCompile(`^[A-Za-z]+$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)
)

// ValidatePhone enforces the 10-digit phone format shared by the entry
// step and the profile form.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return &ValidationError{Field: "mobile_number", Message: "must be exactly 10 digits"}
	}
	return nil
}

// ValidateProfile checks every form constraint and fails closed: the
// first violated field blocks submission before any network call. The
// backend stays the final authority on duplicates.
func ValidateProfile(p models.Profile, minIncome int64, now time.Time) error {
	if !namePattern.MatchString(p.FirstName) {
		return &ValidationError{Field: "first_name", Message: "must contain only letters"}
	}
	if !namePattern.MatchString(p.LastName) {
		return &ValidationError{Field: "last_name", Message: "must contain only letters"}
	}
	if !panPattern.MatchString(p.PAN) {
		return &ValidationError{Field: "pan", Message: "invalid PAN format (e.g. ABCDE1234F)"}
	}
	if !pincodePattern.MatchString(p.Pincode) {
		return &ValidationError{Field: "pincode", Message: "must be exactly 6 digits"}
	}

	dob, err := p.DateOfBirth()
	if err != nil {
		return &ValidationError{Field: "dob", Message: "invalid date of birth"}
	}
	if dob.After(now) {
		return &ValidationError{Field: "dob", Message: "date of birth cannot be in the future"}
	}

	if p.Income < minIncome {
		return &ValidationError{
			Field:   "income",
			Message: fmt.Sprintf("income must be at least %d", minIncome),
		}
	}

	return nil
}
