package models

import "time"

// Step identifies where a verification session currently is.
type Step string

const (
	StepPhoneEntry      Step = "PHONE_ENTRY"
	StepOtpChallenge    Step = "OTP_CHALLENGE"
	StepProfileForm     Step = "PROFILE_FORM"
	StepArtifactDisplay Step = "ARTIFACT_DISPLAY"
)

// WorkflowState is the single persisted record for one verification
// attempt. It is written after every accepted transition and deleted
// when the merchant starts a new application.
type WorkflowState struct {
	PhoneNumber           string    `json:"phone_number" dynamodbav:"phone_number"`
	Step                  Step      `json:"step" dynamodbav:"step"`
	Generation            int64     `json:"generation" dynamodbav:"generation"`
	OtpVerified           bool      `json:"otp_verified" dynamodbav:"otp_verified"`
	IsEligibleCustomer    bool      `json:"is_eligible_customer" dynamodbav:"is_eligible_customer"`
	EligibilityAmount     int64     `json:"eligibility_amount,omitempty" dynamodbav:"eligibility_amount,omitempty"`
	EligibilityTenureDays int       `json:"eligibility_tenure_days,omitempty" dynamodbav:"eligibility_tenure_days,omitempty"`
	CustomerID            string    `json:"customer_id,omitempty" dynamodbav:"customer_id,omitempty"`
	ArtifactURL           string    `json:"artifact_url,omitempty" dynamodbav:"artifact_url,omitempty"`
	Profile               *Profile  `json:"profile,omitempty" dynamodbav:"profile,omitempty"`
	CreatedAt             time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (s *WorkflowState) GetPK() string {
	return "SESSION#" + s.PhoneNumber
}

func (s *WorkflowState) GetSK() string {
	return "STATE"
}

// NewWorkflowState returns a fresh session at the phone-entry step.
// The generation counter carries over from any previous session on the
// same phone so that in-flight results for a discarded session can be
// recognised and dropped.
func NewWorkflowState(phoneNumber string, generation int64) WorkflowState {
	return WorkflowState{
		PhoneNumber: phoneNumber,
		Step:        StepPhoneEntry,
		Generation:  generation,
	}
}
