package workflow

import "github.com/eligify/eligify/internal/models"

// Event is a discrete occurrence fed into Advance. I/O results from the
// gateway, eligibility checker and artifact creator are translated into
// events by the controller; Advance itself never performs I/O.
type Event interface {
	eventName() string
}

// PhoneSubmitted records the (validated) phone number on a fresh
// session before the OTP send is attempted.
type PhoneSubmitted struct {
	Phone string
}

// OtpSent confirms the send succeeded and opens the OTP challenge.
type OtpSent struct{}

// VerdictReached carries the resolver's classification of a verify-OTP
// response.
type VerdictReached struct {
	Verdict Verdict
}

// AdvanceToProfile is the delayed transition into the profile form
// after a needs-profile or expired verdict.
type AdvanceToProfile struct{}

// BackToPhone returns from the OTP challenge to phone entry without
// discarding the session.
type BackToPhone struct{}

// ProfileAccepted records a passed eligibility check.
type ProfileAccepted struct {
	Profile    models.Profile
	CustomerID string
	Amount     int64
	TenureDays int
}

// ArtifactReady stores the provisioned QR reference and completes the
// run.
type ArtifactReady struct {
	URL string
}

// Reset wipes the session back to phone entry.
type Reset struct{}

func (PhoneSubmitted) eventName() string   { return "phone_submitted" }
func (OtpSent) eventName() string          { return "otp_sent" }
func (VerdictReached) eventName() string   { return "verdict_reached" }
func (AdvanceToProfile) eventName() string { return "advance_to_profile" }
func (BackToPhone) eventName() string      { return "back_to_phone" }
func (ProfileAccepted) eventName() string  { return "profile_accepted" }
func (ArtifactReady) eventName() string    { return "artifact_ready" }
func (Reset) eventName() string            { return "reset" }
