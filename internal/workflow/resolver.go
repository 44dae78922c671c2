package workflow

import "strings"

// Backend messages the resolver recognises on a verify-OTP response.
const (
	MsgNotEligible        = "Customer not eligible"
	MsgEligibilityExpired = "Eligibility check expired"
)

// VerifyResult is the payload of a verify-OTP call that passed the
// passcode check or returned a backend verdict.
type VerifyResult struct {
	Success              bool   `json:"success"`
	MaxEligibilityAmount int64  `json:"maxEligibilityAmount,omitempty"`
	TenureDays           int    `json:"tenure,omitempty"`
	CustomerID           string `json:"customerId,omitempty"`
	Message              string `json:"message,omitempty"`
}

// VerdictKind categorises the outcome of OTP verification and drives
// the next workflow branch.
type VerdictKind int

const (
	// VerdictNeedsProfile routes to the profile form; it is the default
	// when the response carries no eligibility signal.
	VerdictNeedsProfile VerdictKind = iota
	// VerdictAlreadyEligible short-circuits straight to artifact
	// provisioning.
	VerdictAlreadyEligible
	// VerdictNotEligible is terminal for the attempt; only reset helps.
	VerdictNotEligible
	// VerdictExpired routes to the profile form after a short display
	// delay so the customer re-qualifies.
	VerdictExpired
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictAlreadyEligible:
		return "already_eligible"
	case VerdictNotEligible:
		return "not_eligible"
	case VerdictExpired:
		return "expired"
	default:
		return "needs_profile"
	}
}

// Verdict is the categorised outcome plus the eligibility fields that
// accompany an already-eligible customer.
type Verdict struct {
	Kind       VerdictKind
	Amount     int64
	TenureDays int
	CustomerID string
	Message    string
}

// Resolve classifies a verify-OTP response. It inspects only the fields
// present in the response; no timers or retries happen here.
func Resolve(res VerifyResult) Verdict {
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = MsgNotEligible
		}
		return Verdict{Kind: VerdictNotEligible, Message: msg}
	}

	if strings.Contains(strings.ToLower(res.Message), "expired") {
		return Verdict{Kind: VerdictExpired, Message: res.Message}
	}

	if res.CustomerID != "" && res.MaxEligibilityAmount > 0 {
		return Verdict{
			Kind:       VerdictAlreadyEligible,
			Amount:     res.MaxEligibilityAmount,
			TenureDays: res.TenureDays,
			CustomerID: res.CustomerID,
		}
	}

	return Verdict{Kind: VerdictNeedsProfile}
}
