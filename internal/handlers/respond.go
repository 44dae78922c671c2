package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eligify/eligify/internal/workflow"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// respondWorkflowError maps the workflow error taxonomy onto HTTP. Every
// failure path carries a user-visible message; nothing is swallowed.
func respondWorkflowError(w http.ResponseWriter, err error) {
	var (
		validationErr *workflow.ValidationError
		networkErr    *workflow.NetworkError
		notFoundErr   *workflow.NotFoundError
		duplicateErr  *workflow.DuplicateIdentityError
		notEligible   *workflow.NotEligibleError
		transitionErr *workflow.TransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error())
	case errors.As(err, &duplicateErr):
		respondWithError(w, http.StatusConflict, "DUPLICATE_IDENTITY", duplicateErr.Error())
	case errors.As(err, &notEligible):
		respondWithError(w, http.StatusForbidden, "NOT_ELIGIBLE", notEligible.Error())
	case errors.As(err, &notFoundErr):
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", notFoundErr.Error())
	case errors.As(err, &transitionErr):
		respondWithError(w, http.StatusConflict, "INVALID_STEP", transitionErr.Error())
	case errors.Is(err, workflow.ErrOTPMismatch):
		respondWithError(w, http.StatusUnauthorized, "INVALID_OTP", "Invalid OTP. Please try again or go back to change your phone number.")
	case errors.Is(err, workflow.ErrOTPExpired):
		respondWithError(w, http.StatusUnauthorized, "OTP_EXPIRED", "OTP not found or expired")
	case errors.Is(err, workflow.ErrTooManyOTPAttempts):
		respondWithError(w, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Maximum OTP attempts exceeded")
	case errors.Is(err, workflow.ErrCooldownActive):
		respondWithError(w, http.StatusTooManyRequests, "COOLDOWN_ACTIVE", "Please wait before requesting a new OTP")
	case errors.Is(err, workflow.ErrOperationInFlight):
		respondWithError(w, http.StatusConflict, "OPERATION_IN_FLIGHT", "A request for this session is still in progress")
	case errors.Is(err, workflow.ErrVerifyBlocked):
		respondWithError(w, http.StatusForbidden, "VERIFY_BLOCKED", "Verification is blocked for this attempt, start a new application")
	case errors.Is(err, workflow.ErrAlreadyVerified):
		respondWithError(w, http.StatusConflict, "ALREADY_VERIFIED", "OTP already verified for this session")
	case errors.Is(err, workflow.ErrSessionNotFound):
		respondWithError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "No active application for this number")
	case errors.Is(err, workflow.ErrStaleResult):
		respondWithError(w, http.StatusConflict, "SESSION_RESET", "The application was reset while the request was in progress")
	case errors.As(err, &networkErr):
		respondWithError(w, http.StatusBadGateway, "UPSTREAM_ERROR", networkErr.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
