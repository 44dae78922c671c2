package models

import "time"

// Customer is the eligibility record created when a profile passes the
// eligibility check. The verdict served on subsequent OTP logins is
// derived from Eligible and EligibilityExpiresAt.
type Customer struct {
	ID                   string    `json:"id" dynamodbav:"id"`
	PhoneNumber          string    `json:"phone_number" dynamodbav:"phone_number"`
	FirstName            string    `json:"first_name" dynamodbav:"first_name"`
	LastName             string    `json:"last_name" dynamodbav:"last_name"`
	PAN                  string    `json:"pan" dynamodbav:"pan"`
	Pincode              string    `json:"pincode" dynamodbav:"pincode"`
	DateOfBirth          string    `json:"date_of_birth" dynamodbav:"date_of_birth"`
	Income               int64     `json:"income" dynamodbav:"income"`
	Eligible             bool      `json:"eligible" dynamodbav:"eligible"`
	EligibilityAmount    int64     `json:"eligibility_amount" dynamodbav:"eligibility_amount"`
	TenureDays           int       `json:"tenure_days" dynamodbav:"tenure_days"`
	EligibilityExpiresAt time.Time `json:"eligibility_expires_at" dynamodbav:"eligibility_expires_at"`
	CreatedAt            time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (c *Customer) GetPK() string {
	return "CUSTOMER#" + c.PhoneNumber
}

func (c *Customer) GetSK() string {
	return "METADATA"
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// EligibilityExpired reports whether a previously eligible customer
// must go through the profile form again.
func (c *Customer) EligibilityExpired(now time.Time) bool {
	return c.Eligible && !c.EligibilityExpiresAt.IsZero() && now.After(c.EligibilityExpiresAt)
}
