package models

import "time"

// OTPData is the Redis-resident record for one issued passcode. The
// code itself is only stored hashed.
type OTPData struct {
	OTPHash   string    `json:"otp_hash"`
	Phone     string    `json:"phone"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
