package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/eligify/eligify/internal/middleware"
	"github.com/eligify/eligify/internal/service"
	"github.com/eligify/eligify/internal/workflow"
)

// AuthHandlers serves the merchant login endpoints. Merchants sign in with
// their registered mobile number and a one time password, and receive a
// bearer token for the protected eligibility and order routes.
type AuthHandlers struct {
	otpService   *service.OTPService
	tokenService *service.TokenService
	logger       *logrus.Logger
}

func NewAuthHandlers(otpService *service.OTPService, tokenService *service.TokenService, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		otpService:   otpService,
		tokenService: tokenService,
		logger:       logger,
	}
}

type mobileVerificationRequest struct {
	MobileNumber string `json:"mobile_number"`
}

type mobileVerificationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type otpVerifyRequest struct {
	MobileNumber string `json:"mobile_number"`
	OTP          string `json:"otp"`
}

type otpVerifyResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// MobileVerification handles POST /api/auth/mobile-verification.
func (h *AuthHandlers) MobileVerification(w http.ResponseWriter, r *http.Request) {
	var req mobileVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := workflow.ValidatePhone(req.MobileNumber); err != nil {
		respondWorkflowError(w, err)
		return
	}

	if _, err := h.otpService.Generate(r.Context(), req.MobileNumber); err != nil {
		if errors.Is(err, workflow.ErrCooldownActive) {
			respondWorkflowError(w, err)
			return
		}
		h.logger.WithError(err).WithField("phone", req.MobileNumber).Error("Failed to generate login OTP")
		respondWithError(w, http.StatusInternalServerError, "OTP_GENERATION_FAILED", "Failed to send OTP")
		return
	}

	respondWithJSON(w, http.StatusOK, mobileVerificationResponse{
		Status:  "success",
		Message: "OTP sent successfully",
	})
}

// OTPVerify handles POST /api/auth/otp-verify.
func (h *AuthHandlers) OTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := workflow.ValidatePhone(req.MobileNumber); err != nil {
		respondWorkflowError(w, err)
		return
	}

	if err := h.otpService.Verify(r.Context(), req.MobileNumber, req.OTP); err != nil {
		respondWorkflowError(w, err)
		return
	}

	token, err := h.tokenService.Issue(req.MobileNumber)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue access token")
		respondWithError(w, http.StatusInternalServerError, "TOKEN_ISSUE_FAILED", "Failed to issue access token")
		return
	}

	respondWithJSON(w, http.StatusOK, otpVerifyResponse{
		Success:     true,
		AccessToken: token.Token,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
	})
}

// Logout handles POST /api/auth/logout. The presented token is revoked and
// will fail verification for the remainder of its lifetime.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(middleware.ContextKeyClaims).(*service.Claims)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authentication context")
		return
	}

	if err := h.tokenService.Revoke(r.Context(), claims); err != nil {
		h.logger.WithError(err).Error("Failed to revoke token")
		respondWithError(w, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to log out")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
