package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eligify/eligify/internal/models"
	"github.com/sirupsen/logrus"
)

// SessionStore persists one WorkflowState per phone number. Load
// returns (nil, nil) when no session exists.
type SessionStore interface {
	Load(ctx context.Context, phoneNumber string) (*models.WorkflowState, error)
	Save(ctx context.Context, state models.WorkflowState) error
	Delete(ctx context.Context, phoneNumber string) error
}

// VerificationGateway performs the OTP network operations. VerifyOTP
// returns a VerifyResult when the passcode matched or the backend
// delivered a verdict; passcode-level failures come back as the
// ErrOTP* sentinels.
type VerificationGateway interface {
	SendOTP(ctx context.Context, phoneNumber string) error
	VerifyOTP(ctx context.Context, phoneNumber, code string) (VerifyResult, error)
	ResendOTP(ctx context.Context, phoneNumber string) error
}

// CheckResult is the outcome of an eligibility check on a submitted
// profile.
type CheckResult struct {
	Eligible   bool
	CustomerID string
	Amount     int64
	TenureDays int
	Message    string
}

// EligibilityChecker runs the backend eligibility decision for a
// profile submission.
type EligibilityChecker interface {
	Check(ctx context.Context, phoneNumber string, profile models.Profile) (CheckResult, error)
}

// ArtifactCreator provisions the QR artifact for a confirmed customer.
// It must be idempotent per customer ID.
type ArtifactCreator interface {
	Create(ctx context.Context, customerID string) (string, error)
}

// Attempt is the transient, never-persisted companion of a session: the
// passcode cells, busy flags, cooldown deadline and last error banner.
// A page reload therefore never resurrects a stale error.
type Attempt struct {
	generation     int64
	entry          OTPEntry
	sendInFlight   bool
	verifyInFlight bool
	resendInFlight bool
	checkInFlight  bool
	createInFlight bool
	blocked        bool
	lastError      string
	cooldownUntil  time.Time
	advanceTimer   Timer
}

type sessionSlot struct {
	mu      sync.Mutex
	attempt Attempt
}

// Options tunes the controller.
type Options struct {
	// AdvanceDelay is the cosmetic pause between a needs-profile or
	// expired verdict and the move into the profile form.
	AdvanceDelay time.Duration
	// ResendCooldown gates how often a new OTP may be requested.
	ResendCooldown time.Duration
	// MinIncome is the profile-form income floor.
	MinIncome int64
}

// Controller owns the step transitions for every active session. All
// I/O is delegated to the injected ports; their results are turned into
// events and applied through Advance, and every accepted transition is
// written to the session store before the caller sees the new state.
type Controller struct {
	store     SessionStore
	gateway   VerificationGateway
	checker   EligibilityChecker
	artifacts ArtifactCreator
	clock     Clock
	opts      Options
	logger    *logrus.Logger

	mu    sync.Mutex
	slots map[string]*sessionSlot
}

func NewController(
	store SessionStore,
	gateway VerificationGateway,
	checker EligibilityChecker,
	artifacts ArtifactCreator,
	clock Clock,
	opts Options,
	logger *logrus.Logger,
) *Controller {
	return &Controller{
		store:     store,
		gateway:   gateway,
		checker:   checker,
		artifacts: artifacts,
		clock:     clock,
		opts:      opts,
		logger:    logger,
		slots:     make(map[string]*sessionSlot),
	}
}

func (c *Controller) slot(phoneNumber string) *sessionSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[phoneNumber]
	if !ok {
		s = &sessionSlot{}
		c.slots[phoneNumber] = s
	}
	return s
}

// load fetches the persisted state under the slot lock and keeps the
// transient generation in sync with it.
func (c *Controller) load(ctx context.Context, phoneNumber string, slot *sessionSlot) (*models.WorkflowState, error) {
	state, err := c.store.Load(ctx, phoneNumber)
	if err != nil {
		return nil, &NetworkError{Op: "load session", Err: err}
	}
	if state != nil && state.Generation > slot.attempt.generation {
		slot.attempt.generation = state.Generation
	}
	return state, nil
}

func (c *Controller) persist(ctx context.Context, slot *sessionSlot, state models.WorkflowState) (models.WorkflowState, error) {
	now := c.clock.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now
	state.Generation = slot.attempt.generation
	if err := c.store.Save(ctx, state); err != nil {
		return state, &NetworkError{Op: "save session", Err: err}
	}
	return state, nil
}

// Session is the view handed back to the host UI: the persisted state
// plus the transient affordances it needs to render the challenge.
type Session struct {
	State           models.WorkflowState
	CooldownSeconds int
	Blocked         bool
	PendingAdvance  bool
	Verdict         *Verdict
}

func (c *Controller) snapshot(slot *sessionSlot, state models.WorkflowState) Session {
	s := Session{State: state, Blocked: slot.attempt.blocked}
	if remaining := slot.attempt.cooldownUntil.Sub(c.clock.Now()); remaining > 0 {
		s.CooldownSeconds = int(remaining.Round(time.Second) / time.Second)
	}
	return s
}

// Resume restores a session after a reload. When none is persisted it
// returns a fresh phone-entry state without creating one.
func (c *Controller) Resume(ctx context.Context, phoneNumber string) (Session, error) {
	if err := ValidatePhone(phoneNumber); err != nil {
		return Session{}, err
	}

	slot := c.slot(phoneNumber)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	state, err := c.load(ctx, phoneNumber, slot)
	if err != nil {
		return Session{}, err
	}
	if state == nil {
		fresh := models.NewWorkflowState(phoneNumber, slot.attempt.generation)
		return c.snapshot(slot, fresh), nil
	}
	return c.snapshot(slot, *state), nil
}

// SubmitPhone validates the number, sends the OTP and, on success,
// opens the challenge. A send failure leaves the caller at phone entry
// with nothing persisted.
func (c *Controller) SubmitPhone(ctx context.Context, phoneNumber string) (Session, error) {
	if err := ValidatePhone(phoneNumber); err != nil {
		return Session{}, err
	}

	slot := c.slot(phoneNumber)
	slot.mu.Lock()
	stored, err := c.load(ctx, phoneNumber, slot)
	if err != nil {
		slot.mu.Unlock()
		return Session{}, err
	}

	state := models.NewWorkflowState(phoneNumber, slot.attempt.generation)
	if stored != nil {
		state = *stored
	}
	if state.Step != models.StepPhoneEntry {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, &TransitionError{Step: state.Step, Event: "phone_submitted"}
	}
	if slot.attempt.sendInFlight {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, ErrOperationInFlight
	}

	state, err = Advance(state, PhoneSubmitted{Phone: phoneNumber})
	if err != nil {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, err
	}
	slot.attempt.sendInFlight = true
	gen := slot.attempt.generation
	slot.mu.Unlock()

	sendErr := c.gateway.SendOTP(ctx, phoneNumber)

	slot.mu.Lock()
	defer slot.mu.Unlock()
	slot.attempt.sendInFlight = false
	if slot.attempt.generation != gen {
		return Session{}, ErrStaleResult
	}
	if sendErr != nil {
		nerr := &NetworkError{Op: "send otp", Err: sendErr}
		slot.attempt.lastError = nerr.Error()
		return c.snapshot(slot, state), nerr
	}

	next, err := Advance(state, OtpSent{})
	if err != nil {
		return c.snapshot(slot, state), err
	}
	next, err = c.persist(ctx, slot, next)
	if err != nil {
		return c.snapshot(slot, state), err
	}

	slot.attempt.cooldownUntil = c.clock.Now().Add(c.opts.ResendCooldown)
	slot.attempt.lastError = ""
	slot.attempt.entry.Clear()
	return c.snapshot(slot, next), nil
}

// SubmitOTP verifies the entered code and branches on the resolver's
// verdict: already-eligible customers get the artifact immediately,
// everyone else is routed to the profile form after the display delay.
// A wrong code is recoverable; only a not-eligible verdict blocks the
// attempt.
func (c *Controller) SubmitOTP(ctx context.Context, phoneNumber, code string) (Session, error) {
	slot := c.slot(phoneNumber)
	slot.mu.Lock()
	stored, err := c.load(ctx, phoneNumber, slot)
	if err != nil {
		slot.mu.Unlock()
		return Session{}, err
	}
	if stored == nil {
		slot.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	state := *stored
	if state.Step != models.StepOtpChallenge {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, &TransitionError{Step: state.Step, Event: "verdict_reached"}
	}
	if state.OtpVerified {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, ErrAlreadyVerified
	}
	if slot.attempt.blocked {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, ErrVerifyBlocked
	}
	if slot.attempt.verifyInFlight {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, ErrOperationInFlight
	}

	// The cell model is the canonical sanitiser: paste strips
	// non-digits and truncates past six, so anything that is not a
	// clean 6-digit code fails validation here.
	slot.attempt.entry.Paste(code)
	if !slot.attempt.entry.Complete() {
		slot.attempt.entry.Clear()
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, &ValidationError{Field: "otp", Message: "must be exactly 6 digits"}
	}
	code = slot.attempt.entry.Code()

	slot.attempt.verifyInFlight = true
	gen := slot.attempt.generation
	slot.mu.Unlock()

	res, verifyErr := c.gateway.VerifyOTP(ctx, phoneNumber, code)

	slot.mu.Lock()
	slot.attempt.verifyInFlight = false
	if slot.attempt.generation != gen {
		slot.mu.Unlock()
		return Session{}, ErrStaleResult
	}

	if verifyErr != nil {
		var snap Session
		switch {
		case errors.Is(verifyErr, ErrOTPMismatch),
			errors.Is(verifyErr, ErrOTPExpired),
			errors.Is(verifyErr, ErrTooManyOTPAttempts):
			// Recoverable: the challenge stays open for another try.
			slot.attempt.lastError = verifyErr.Error()
			snap = c.snapshot(slot, state)
			slot.mu.Unlock()
			return snap, verifyErr
		default:
			nerr := &NetworkError{Op: "verify otp", Err: verifyErr}
			slot.attempt.lastError = nerr.Error()
			snap = c.snapshot(slot, state)
			slot.mu.Unlock()
			return snap, nerr
		}
	}

	verdict := Resolve(res)
	next, err := Advance(state, VerdictReached{Verdict: verdict})
	if err != nil {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, err
	}

	if verdict.Kind == VerdictNotEligible {
		// Terminal for this attempt: nothing is persisted, further
		// submissions are refused until reset.
		slot.attempt.blocked = true
		slot.attempt.lastError = verdict.Message
		snap := c.snapshot(slot, next)
		snap.Verdict = &verdict
		slot.mu.Unlock()
		return snap, &NotEligibleError{Message: verdict.Message}
	}

	next, err = c.persist(ctx, slot, next)
	if err != nil {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, err
	}
	slot.attempt.lastError = ""

	switch verdict.Kind {
	case VerdictAlreadyEligible:
		snap := c.snapshot(slot, next)
		snap.Verdict = &verdict
		slot.mu.Unlock()

		provisioned, perr := c.CreateArtifact(ctx, phoneNumber)
		if perr != nil {
			// Eligibility is already recorded; the artifact fetch is
			// retryable through CreateArtifact.
			return snap, perr
		}
		provisioned.Verdict = &verdict
		return provisioned, nil

	default: // needs-profile or expired
		delayGen := gen
		slot.attempt.advanceTimer = c.clock.AfterFunc(c.opts.AdvanceDelay, func() {
			c.delayedAdvance(phoneNumber, delayGen)
		})
		snap := c.snapshot(slot, next)
		snap.Verdict = &verdict
		snap.PendingAdvance = true
		slot.mu.Unlock()
		return snap, nil
	}
}

// delayedAdvance fires after the display delay and moves a verified
// session into the profile form, unless a reset discarded it meanwhile.
func (c *Controller) delayedAdvance(phoneNumber string, gen int64) {
	ctx := context.Background()
	slot := c.slot(phoneNumber)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.attempt.generation != gen {
		return
	}
	stored, err := c.load(ctx, phoneNumber, slot)
	if err != nil || stored == nil {
		return
	}
	next, err := Advance(*stored, AdvanceToProfile{})
	if err != nil {
		return
	}
	if _, err := c.persist(ctx, slot, next); err != nil {
		c.logger.WithError(err).WithField("phone", phoneNumber).
			Error("Failed to persist delayed profile advance")
	}
}

// ResendOTP re-issues the passcode once the cooldown has elapsed and
// the current one is not already verified. Success resets the cooldown.
func (c *Controller) ResendOTP(ctx context.Context, phoneNumber string) (Session, error) {
	slot := c.slot(phoneNumber)
	slot.mu.Lock()
	stored, err := c.load(ctx, phoneNumber, slot)
	if err != nil {
		slot.mu.Unlock()
		return Session{}, err
	}
	if stored == nil {
		slot.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	state := *stored
	if state.Step != models.StepOtpChallenge || state.OtpVerified {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, &TransitionError{Step: state.Step, Event: "otp_sent"}
	}
	if slot.attempt.resendInFlight {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, ErrOperationInFlight
	}
	if c.clock.Now().Before(slot.attempt.cooldownUntil) {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, ErrCooldownActive
	}

	slot.attempt.resendInFlight = true
	gen := slot.attempt.generation
	slot.mu.Unlock()

	resendErr := c.gateway.ResendOTP(ctx, phoneNumber)

	slot.mu.Lock()
	defer slot.mu.Unlock()
	slot.attempt.resendInFlight = false
	if slot.attempt.generation != gen {
		return Session{}, ErrStaleResult
	}
	if resendErr != nil {
		if errors.Is(resendErr, ErrCooldownActive) {
			return c.snapshot(slot, state), resendErr
		}
		nerr := &NetworkError{Op: "resend otp", Err: resendErr}
		slot.attempt.lastError = nerr.Error()
		return c.snapshot(slot, state), nerr
	}

	slot.attempt.cooldownUntil = c.clock.Now().Add(c.opts.ResendCooldown)
	slot.attempt.entry.Clear()
	slot.attempt.lastError = ""
	return c.snapshot(slot, state), nil
}

// SubmitProfile validates the extended form, runs the eligibility
// check and on success provisions the artifact. Failures keep the form
// open: duplicates and rejections are inline errors, transport failures
// are retryable.
func (c *Controller) SubmitProfile(ctx context.Context, phoneNumber string, profile models.Profile) (Session, error) {
	if err := ValidateProfile(profile, c.opts.MinIncome, c.clock.Now()); err != nil {
		return Session{}, err
	}

	slot := c.slot(phoneNumber)
	slot.mu.Lock()
	stored, err := c.load(ctx, phoneNumber, slot)
	if err != nil {
		slot.mu.Unlock()
		return Session{}, err
	}
	if stored == nil {
		slot.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	state := *stored
	if state.Step != models.StepProfileForm {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, &TransitionError{Step: state.Step, Event: "profile_accepted"}
	}
	if slot.attempt.checkInFlight {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, ErrOperationInFlight
	}

	slot.attempt.checkInFlight = true
	gen := slot.attempt.generation
	slot.mu.Unlock()

	res, checkErr := c.checker.Check(ctx, phoneNumber, profile)

	slot.mu.Lock()
	slot.attempt.checkInFlight = false
	if slot.attempt.generation != gen {
		slot.mu.Unlock()
		return Session{}, ErrStaleResult
	}

	if checkErr != nil {
		var dup *DuplicateIdentityError
		if errors.As(checkErr, &dup) {
			slot.attempt.lastError = dup.Error()
			snap := c.snapshot(slot, state)
			slot.mu.Unlock()
			return snap, checkErr
		}
		nerr := &NetworkError{Op: "check eligibility", Err: checkErr}
		slot.attempt.lastError = nerr.Error()
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, nerr
	}

	if !res.Eligible {
		slot.attempt.lastError = res.Message
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, &NotEligibleError{Message: res.Message}
	}

	next, err := Advance(state, ProfileAccepted{
		Profile:    profile,
		CustomerID: res.CustomerID,
		Amount:     res.Amount,
		TenureDays: res.TenureDays,
	})
	if err != nil {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, err
	}
	next, err = c.persist(ctx, slot, next)
	if err != nil {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, err
	}
	slot.attempt.lastError = ""
	snap := c.snapshot(slot, next)
	slot.mu.Unlock()

	provisioned, perr := c.CreateArtifact(ctx, phoneNumber)
	if perr != nil {
		return snap, perr
	}
	return provisioned, nil
}

// CreateArtifact fetches the QR artifact for a confirmed customer. It
// never issues a second backend call once the session already holds an
// artifact URL.
func (c *Controller) CreateArtifact(ctx context.Context, phoneNumber string) (Session, error) {
	slot := c.slot(phoneNumber)
	slot.mu.Lock()
	stored, err := c.load(ctx, phoneNumber, slot)
	if err != nil {
		slot.mu.Unlock()
		return Session{}, err
	}
	if stored == nil {
		slot.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	state := *stored
	if state.ArtifactURL != "" {
		// Already provisioned; surface the stored reference as-is.
		if state.Step != models.StepArtifactDisplay {
			if advanced, aerr := Advance(state, ArtifactReady{URL: state.ArtifactURL}); aerr == nil {
				if persisted, perr := c.persist(ctx, slot, advanced); perr == nil {
					state = persisted
				}
			}
		}
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, nil
	}
	if !state.IsEligibleCustomer || state.CustomerID == "" {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, &TransitionError{Step: state.Step, Event: "artifact_ready"}
	}
	if slot.attempt.createInFlight {
		snap := c.snapshot(slot, state)
		slot.mu.Unlock()
		return snap, ErrOperationInFlight
	}

	slot.attempt.createInFlight = true
	gen := slot.attempt.generation
	customerID := state.CustomerID
	slot.mu.Unlock()

	url, createErr := c.artifacts.Create(ctx, customerID)

	slot.mu.Lock()
	defer slot.mu.Unlock()
	slot.attempt.createInFlight = false
	if slot.attempt.generation != gen {
		return Session{}, ErrStaleResult
	}
	if createErr != nil {
		var nf *NotFoundError
		if errors.As(createErr, &nf) {
			slot.attempt.lastError = nf.Error()
			return c.snapshot(slot, state), createErr
		}
		nerr := &NetworkError{Op: "create order", Err: createErr}
		slot.attempt.lastError = nerr.Error()
		return c.snapshot(slot, state), nerr
	}

	next, err := Advance(state, ArtifactReady{URL: url})
	if err != nil {
		return c.snapshot(slot, state), err
	}
	next, err = c.persist(ctx, slot, next)
	if err != nil {
		return c.snapshot(slot, state), err
	}
	slot.attempt.lastError = ""
	return c.snapshot(slot, next), nil
}

// Back returns from the OTP challenge to phone entry so the number can
// be corrected. The session survives; only a reset wipes it.
func (c *Controller) Back(ctx context.Context, phoneNumber string) (Session, error) {
	slot := c.slot(phoneNumber)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	stored, err := c.load(ctx, phoneNumber, slot)
	if err != nil {
		return Session{}, err
	}
	if stored == nil {
		return Session{}, ErrSessionNotFound
	}
	next, err := Advance(*stored, BackToPhone{})
	if err != nil {
		return c.snapshot(slot, *stored), err
	}
	next, err = c.persist(ctx, slot, next)
	if err != nil {
		return c.snapshot(slot, *stored), err
	}
	slot.attempt.entry.Clear()
	return c.snapshot(slot, next), nil
}

// Reset discards the session entirely: persisted state is deleted, the
// transient attempt is wiped, any pending delayed advance is cancelled,
// and the generation bump makes late-arriving results for the old
// session fall on the floor.
func (c *Controller) Reset(ctx context.Context, phoneNumber string) (Session, error) {
	slot := c.slot(phoneNumber)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.attempt.advanceTimer != nil {
		slot.attempt.advanceTimer.Stop()
	}
	slot.attempt = Attempt{generation: slot.attempt.generation + 1}

	if err := c.store.Delete(ctx, phoneNumber); err != nil {
		return Session{}, &NetworkError{Op: "delete session", Err: err}
	}

	fresh := models.NewWorkflowState("", slot.attempt.generation)
	return c.snapshot(slot, fresh), nil
}
