package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/eligify/eligify/internal/models"
	"github.com/eligify/eligify/internal/workflow"
)

// WorkflowHandlers drives the customer eligibility application. Each endpoint
// is keyed by the customer's mobile number and delegates to the workflow
// controller, which owns sequencing and persistence.
type WorkflowHandlers struct {
	controller *workflow.Controller
	logger     *logrus.Logger
}

func NewWorkflowHandlers(controller *workflow.Controller, logger *logrus.Logger) *WorkflowHandlers {
	return &WorkflowHandlers{
		controller: controller,
		logger:     logger,
	}
}

type phoneRequest struct {
	MobileNumber string `json:"mobile_number"`
}

type verifyEligibilityRequest struct {
	MobileNumber string `json:"mobile_number"`
	OTP          string `json:"otp"`
}

type eligibilityCheckRequest struct {
	MobileNumber string `json:"mobile_number"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PAN          string `json:"pan"`
	Pincode      string `json:"pincode"`
	DOBDay       string `json:"dob_day"`
	DOBMonth     string `json:"dob_month"`
	DOBYear      string `json:"dob_year"`
	Income       int64  `json:"income"`
}

type sessionResponse struct {
	Success bool        `json:"success"`
	Session sessionView `json:"session"`
}

type sessionView struct {
	MobileNumber       string          `json:"mobile_number"`
	Step               models.Step     `json:"step"`
	OtpVerified        bool            `json:"otp_verified"`
	IsEligibleCustomer bool            `json:"is_eligible_customer"`
	EligibilityAmount  int64           `json:"eligibility_amount,omitempty"`
	TenureDays         int             `json:"tenure_days,omitempty"`
	CustomerID         string          `json:"customer_id,omitempty"`
	QRURL              string          `json:"qr_url,omitempty"`
	CooldownSeconds    int             `json:"cooldown_seconds"`
	Blocked            bool            `json:"blocked"`
	PendingAdvance     bool            `json:"pending_advance"`
	Verdict            string          `json:"verdict,omitempty"`
	Message            string          `json:"message,omitempty"`
	Profile            *models.Profile `json:"profile,omitempty"`
}

func newSessionResponse(sess workflow.Session) sessionResponse {
	view := sessionView{
		MobileNumber:       sess.State.PhoneNumber,
		Step:               sess.State.Step,
		OtpVerified:        sess.State.OtpVerified,
		IsEligibleCustomer: sess.State.IsEligibleCustomer,
		EligibilityAmount:  sess.State.EligibilityAmount,
		TenureDays:         sess.State.EligibilityTenureDays,
		CustomerID:         sess.State.CustomerID,
		QRURL:              sess.State.ArtifactURL,
		CooldownSeconds:    sess.CooldownSeconds,
		Blocked:            sess.Blocked,
		PendingAdvance:     sess.PendingAdvance,
		Profile:            sess.State.Profile,
	}
	if sess.Verdict != nil {
		view.Verdict = sess.Verdict.Kind.String()
		view.Message = sess.Verdict.Message
	}
	return sessionResponse{Success: true, Session: view}
}

// SendOTP handles POST /api/eligibility/send-otp. It registers the mobile
// number with the workflow and dispatches a verification OTP.
func (h *WorkflowHandlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	sess, err := h.controller.SubmitPhone(r.Context(), req.MobileNumber)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse(sess))
}

// VerifyOTP handles POST /api/eligibility/verify-otp. On success the session
// either advances toward the profile form, or straight to the QR artifact when
// the customer already holds a live eligibility.
func (h *WorkflowHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyEligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	sess, err := h.controller.SubmitOTP(r.Context(), req.MobileNumber, req.OTP)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse(sess))
}

// ResendOTP handles POST /api/eligibility/resend-otp.
func (h *WorkflowHandlers) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	sess, err := h.controller.ResendOTP(r.Context(), req.MobileNumber)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse(sess))
}

// CheckEligibility handles POST /api/eligibility/check. It submits the
// customer's profile and, when the check passes, creates the order artifact.
func (h *WorkflowHandlers) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req eligibilityCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	profile := models.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		PAN:       req.PAN,
		Pincode:   req.Pincode,
		DOBDay:    req.DOBDay,
		DOBMonth:  req.DOBMonth,
		DOBYear:   req.DOBYear,
		Income:    req.Income,
	}

	sess, err := h.controller.SubmitProfile(r.Context(), req.MobileNumber, profile)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse(sess))
}

// CreateOrder handles POST /api/eligibility/create-order. Repeated calls for
// the same session return the already issued QR URL.
func (h *WorkflowHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	sess, err := h.controller.CreateArtifact(r.Context(), req.MobileNumber)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse(sess))
}

// GetSession handles GET /api/eligibility/session?number=NNNNNNNNNN. It lets
// a client resume an application after a page reload.
func (h *WorkflowHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	sess, err := h.controller.Resume(r.Context(), number)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse(sess))
}

// Back handles POST /api/eligibility/back, returning from the OTP challenge
// to phone entry so the customer can correct the number.
func (h *WorkflowHandlers) Back(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	sess, err := h.controller.Back(r.Context(), req.MobileNumber)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse(sess))
}

// Reset handles POST /api/eligibility/reset. The session record is discarded
// and any in-flight results for the old session are ignored.
func (h *WorkflowHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	sess, err := h.controller.Reset(r.Context(), req.MobileNumber)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse(sess))
}
