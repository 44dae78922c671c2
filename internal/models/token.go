package models

// AccessToken is the bearer credential handed to the merchant client
// after a successful OTP login. The host UI keeps a single token; there
// is no refresh rotation.
type AccessToken struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}
