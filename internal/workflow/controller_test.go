package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eligify/eligify/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]models.WorkflowState
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]models.WorkflowState)}
}

func (s *fakeStore) Load(ctx context.Context, phone string) (*models.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[phone]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *fakeStore) Save(ctx context.Context, state models.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[state.PhoneNumber] = state
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, phone)
	return nil
}

type fakeGateway struct {
	mu         sync.Mutex
	sendErr    error
	verifyRes  VerifyResult
	verifyErr  error
	resendErr  error
	sendCalls  int
	verifyHook func()
	lastCode   string
}

func (g *fakeGateway) SendOTP(ctx context.Context, phone string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendCalls++
	return g.sendErr
}

func (g *fakeGateway) VerifyOTP(ctx context.Context, phone, code string) (VerifyResult, error) {
	g.mu.Lock()
	g.lastCode = code
	hook := g.verifyHook
	res, err := g.verifyRes, g.verifyErr
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return res, err
}

func (g *fakeGateway) ResendOTP(ctx context.Context, phone string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resendErr
}

type fakeChecker struct {
	res CheckResult
	err error
}

func (c *fakeChecker) Check(ctx context.Context, phone string, profile models.Profile) (CheckResult, error) {
	return c.res, c.err
}

type fakeArtifacts struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (a *fakeArtifacts) Create(ctx context.Context, customerID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.url, a.err
}

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	fired := !t.stopped
	t.stopped = true
	return fired
}

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fire runs every pending timer that has not been stopped.
func (c *fakeClock) fire() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.fn()
		}
	}
}

type controllerFixture struct {
	controller *Controller
	store      *fakeStore
	gateway    *fakeGateway
	checker    *fakeChecker
	artifacts  *fakeArtifacts
	clock      *fakeClock
}

func newFixture(t *testing.T) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		store:     newFakeStore(),
		gateway:   &fakeGateway{},
		checker:   &fakeChecker{},
		artifacts: &fakeArtifacts{url: "https://onboard.eligify.in/apply?order=o1"},
		clock:     newFakeClock(),
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	f.controller = NewController(f.store, f.gateway, f.checker, f.artifacts, f.clock, Options{
		AdvanceDelay:   1500 * time.Millisecond,
		ResendCooldown: 60 * time.Second,
		MinIncome:      12000,
	}, logger)
	return f
}

const testPhone = "9876543210"

func (f *controllerFixture) openChallenge(t *testing.T) {
	t.Helper()
	sess, err := f.controller.SubmitPhone(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("SubmitPhone failed: %v", err)
	}
	if sess.State.Step != models.StepOtpChallenge {
		t.Fatalf("expected OTP challenge after send, got %s", sess.State.Step)
	}
}

func TestControllerSubmitPhoneOpensChallenge(t *testing.T) {
	f := newFixture(t)

	sess, err := f.controller.SubmitPhone(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("SubmitPhone failed: %v", err)
	}
	if sess.State.Step != models.StepOtpChallenge {
		t.Fatalf("expected OTP challenge, got %s", sess.State.Step)
	}
	if sess.CooldownSeconds != 60 {
		t.Fatalf("expected a fresh 60s cooldown, got %d", sess.CooldownSeconds)
	}
	if f.gateway.sendCalls != 1 {
		t.Fatalf("expected one send, got %d", f.gateway.sendCalls)
	}

	stored, _ := f.store.Load(context.Background(), testPhone)
	if stored == nil || stored.Step != models.StepOtpChallenge {
		t.Fatal("expected the challenge step to be persisted")
	}
}

func TestControllerSubmitPhoneRejectsBadNumber(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.SubmitPhone(context.Background(), "12345")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if f.gateway.sendCalls != 0 {
		t.Fatal("validation failure must not reach the gateway")
	}
}

func TestControllerSendFailureStaysAtPhoneEntry(t *testing.T) {
	f := newFixture(t)
	f.gateway.sendErr = errors.New("sms provider down")

	sess, err := f.controller.SubmitPhone(context.Background(), testPhone)
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if sess.State.Step != models.StepPhoneEntry {
		t.Fatalf("send failure must not advance, got %s", sess.State.Step)
	}
	if stored, _ := f.store.Load(context.Background(), testPhone); stored != nil {
		t.Fatal("send failure must not persist a session")
	}
}

func TestControllerNewCustomerFlow(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{Success: true}
	f.checker.res = CheckResult{Eligible: true, CustomerID: "c1", Amount: 50000, TenureDays: 30}
	f.openChallenge(t)

	sess, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456")
	if err != nil {
		t.Fatalf("SubmitOTP failed: %v", err)
	}
	if f.gateway.lastCode != "123456" {
		t.Fatalf("expected sanitised code 123456, got %q", f.gateway.lastCode)
	}
	if !sess.State.OtpVerified {
		t.Fatal("expected verified session")
	}
	if sess.State.Step != models.StepOtpChallenge || !sess.PendingAdvance {
		t.Fatalf("expected pending advance at the challenge, got %+v", sess)
	}
	if sess.Verdict == nil || sess.Verdict.Kind != VerdictNeedsProfile {
		t.Fatalf("expected needs-profile verdict, got %+v", sess.Verdict)
	}

	// The move into the profile form happens after the display delay.
	f.clock.advance(1500 * time.Millisecond)
	f.clock.fire()

	resumed, err := f.controller.Resume(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.State.Step != models.StepProfileForm {
		t.Fatalf("expected profile form after the delay, got %s", resumed.State.Step)
	}

	final, err := f.controller.SubmitProfile(context.Background(), testPhone, validProfile())
	if err != nil {
		t.Fatalf("SubmitProfile failed: %v", err)
	}
	if final.State.Step != models.StepArtifactDisplay {
		t.Fatalf("expected artifact display, got %s", final.State.Step)
	}
	if final.State.ArtifactURL != f.artifacts.url {
		t.Fatalf("expected QR URL %q, got %q", f.artifacts.url, final.State.ArtifactURL)
	}
	if final.State.CustomerID != "c1" || final.State.EligibilityAmount != 50000 {
		t.Fatalf("expected eligibility terms on the session, got %+v", final.State)
	}
}

func TestControllerAlreadyEligibleSkipsProfileForm(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{
		Success:              true,
		CustomerID:           "c1",
		MaxEligibilityAmount: 50000,
		TenureDays:           30,
	}
	f.openChallenge(t)

	sess, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456")
	if err != nil {
		t.Fatalf("SubmitOTP failed: %v", err)
	}
	if sess.State.Step != models.StepArtifactDisplay {
		t.Fatalf("expected direct jump to artifact display, got %s", sess.State.Step)
	}
	if sess.State.ArtifactURL == "" {
		t.Fatal("expected provisioned artifact URL")
	}
	if sess.Verdict == nil || sess.Verdict.Kind != VerdictAlreadyEligible {
		t.Fatalf("expected already-eligible verdict, got %+v", sess.Verdict)
	}
	if f.artifacts.calls != 1 {
		t.Fatalf("expected one artifact call, got %d", f.artifacts.calls)
	}
}

func TestControllerNotEligibleBlocksAttempt(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{Success: false, Message: MsgNotEligible}
	f.openChallenge(t)

	sess, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456")
	var ne *NotEligibleError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NotEligibleError, got %v", err)
	}
	if ne.Message != MsgNotEligible {
		t.Fatalf("expected backend message, got %q", ne.Message)
	}
	if !sess.Blocked {
		t.Fatal("expected the attempt to be blocked")
	}

	// Nothing of the verdict is persisted.
	stored, _ := f.store.Load(context.Background(), testPhone)
	if stored == nil || stored.OtpVerified {
		t.Fatalf("not-eligible verdict must not persist verification, got %+v", stored)
	}

	// Further submissions are refused until reset.
	if _, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456"); !errors.Is(err, ErrVerifyBlocked) {
		t.Fatalf("expected ErrVerifyBlocked, got %v", err)
	}

	reset, err := f.controller.Reset(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if reset.Blocked || reset.State.Step != models.StepPhoneEntry {
		t.Fatalf("expected a clean session after reset, got %+v", reset)
	}
}

func TestControllerWrongOTPIsRecoverable(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyErr = ErrOTPMismatch
	f.openChallenge(t)

	sess, err := f.controller.SubmitOTP(context.Background(), testPhone, "000000")
	if !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("expected ErrOTPMismatch, got %v", err)
	}
	if sess.State.Step != models.StepOtpChallenge || sess.Blocked {
		t.Fatalf("wrong code must keep the challenge open, got %+v", sess)
	}

	f.gateway.verifyErr = nil
	f.gateway.verifyRes = VerifyResult{Success: true}
	if _, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456"); err != nil {
		t.Fatalf("retry after mismatch failed: %v", err)
	}
}

func TestControllerSubmitOTPSanitisesInput(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{Success: true}
	f.openChallenge(t)

	if _, err := f.controller.SubmitOTP(context.Background(), testPhone, "12 34-56"); err != nil {
		t.Fatalf("expected formatted code to be accepted, got %v", err)
	}
	if f.gateway.lastCode != "123456" {
		t.Fatalf("expected stripped code, got %q", f.gateway.lastCode)
	}
}

func TestControllerSubmitOTPRejectsShortCode(t *testing.T) {
	f := newFixture(t)
	f.openChallenge(t)

	_, err := f.controller.SubmitOTP(context.Background(), testPhone, "1234")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if f.gateway.lastCode != "" {
		t.Fatal("short code must not reach the gateway")
	}
}

func TestControllerResetDuringVerifyDiscardsResult(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{Success: true}
	f.openChallenge(t)

	// The reset lands while the verify call is on the wire.
	f.gateway.verifyHook = func() {
		f.gateway.verifyHook = nil
		if _, err := f.controller.Reset(context.Background(), testPhone); err != nil {
			t.Errorf("Reset failed: %v", err)
		}
	}

	if _, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456"); !errors.Is(err, ErrStaleResult) {
		t.Fatalf("expected ErrStaleResult, got %v", err)
	}

	if stored, _ := f.store.Load(context.Background(), testPhone); stored != nil {
		t.Fatal("stale verify result must not be persisted")
	}
}

func TestControllerResetCancelsPendingAdvance(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{Success: true}
	f.openChallenge(t)

	if _, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456"); err != nil {
		t.Fatalf("SubmitOTP failed: %v", err)
	}
	if _, err := f.controller.Reset(context.Background(), testPhone); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	// Firing the stale timer must not resurrect the session.
	f.clock.advance(1500 * time.Millisecond)
	f.clock.fire()

	if stored, _ := f.store.Load(context.Background(), testPhone); stored != nil {
		t.Fatal("cancelled advance must not recreate the session")
	}
}

func TestControllerResendCooldown(t *testing.T) {
	f := newFixture(t)
	f.openChallenge(t)

	if _, err := f.controller.ResendOTP(context.Background(), testPhone); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive right after send, got %v", err)
	}

	f.clock.advance(61 * time.Second)
	sess, err := f.controller.ResendOTP(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("ResendOTP after cooldown failed: %v", err)
	}
	if sess.CooldownSeconds != 60 {
		t.Fatalf("expected cooldown restart, got %d", sess.CooldownSeconds)
	}
}

func TestControllerDuplicateIdentityKeepsFormOpen(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{Success: true}
	f.openChallenge(t)
	if _, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456"); err != nil {
		t.Fatalf("SubmitOTP failed: %v", err)
	}
	f.clock.advance(1500 * time.Millisecond)
	f.clock.fire()

	f.checker.err = &DuplicateIdentityError{PAN: "ABCDE1234F"}
	sess, err := f.controller.SubmitProfile(context.Background(), testPhone, validProfile())
	var dup *DuplicateIdentityError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateIdentityError, got %v", err)
	}
	if sess.State.Step != models.StepProfileForm {
		t.Fatalf("duplicate identity must keep the form open, got %s", sess.State.Step)
	}
}

func TestControllerProfileRejectionKeepsFormOpen(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{Success: true}
	f.openChallenge(t)
	if _, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456"); err != nil {
		t.Fatalf("SubmitOTP failed: %v", err)
	}
	f.clock.advance(1500 * time.Millisecond)
	f.clock.fire()

	f.checker.res = CheckResult{Eligible: false, Message: MsgNotEligible}
	sess, err := f.controller.SubmitProfile(context.Background(), testPhone, validProfile())
	var ne *NotEligibleError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NotEligibleError, got %v", err)
	}
	if sess.State.Step != models.StepProfileForm || sess.Blocked {
		t.Fatalf("form rejection must stay editable and unblocked, got %+v", sess)
	}
}

func TestControllerCreateArtifactIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{
		Success:              true,
		CustomerID:           "c1",
		MaxEligibilityAmount: 50000,
		TenureDays:           30,
	}
	f.openChallenge(t)
	if _, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456"); err != nil {
		t.Fatalf("SubmitOTP failed: %v", err)
	}

	sess, err := f.controller.CreateArtifact(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("repeat CreateArtifact failed: %v", err)
	}
	if sess.State.ArtifactURL != f.artifacts.url {
		t.Fatalf("expected stored URL, got %q", sess.State.ArtifactURL)
	}
	if f.artifacts.calls != 1 {
		t.Fatalf("expected a single backend call, got %d", f.artifacts.calls)
	}
}

func TestControllerArtifactFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.gateway.verifyRes = VerifyResult{
		Success:              true,
		CustomerID:           "c1",
		MaxEligibilityAmount: 50000,
		TenureDays:           30,
	}
	f.artifacts.err = errors.New("dynamo unavailable")
	f.openChallenge(t)

	_, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456")
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NetworkError from artifact call, got %v", err)
	}

	// Eligibility is recorded, so the artifact call can be retried alone.
	f.artifacts.err = nil
	sess, err := f.controller.CreateArtifact(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if sess.State.Step != models.StepArtifactDisplay {
		t.Fatalf("expected artifact display after retry, got %s", sess.State.Step)
	}
}

func TestControllerBackReturnsToPhoneEntry(t *testing.T) {
	f := newFixture(t)
	f.openChallenge(t)

	sess, err := f.controller.Back(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if sess.State.Step != models.StepPhoneEntry {
		t.Fatalf("expected phone entry, got %s", sess.State.Step)
	}

	// The number can be resubmitted after going back.
	if _, err := f.controller.SubmitPhone(context.Background(), testPhone); err != nil {
		t.Fatalf("resubmit after back failed: %v", err)
	}
}

func TestControllerSubmitOTPWithoutSession(t *testing.T) {
	f := newFixture(t)
	if _, err := f.controller.SubmitOTP(context.Background(), testPhone, "123456"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestControllerResumeWithoutSessionReturnsFreshState(t *testing.T) {
	f := newFixture(t)

	sess, err := f.controller.Resume(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if sess.State.Step != models.StepPhoneEntry {
		t.Fatalf("expected phone entry, got %s", sess.State.Step)
	}
	if stored, _ := f.store.Load(context.Background(), testPhone); stored != nil {
		t.Fatal("Resume must not create a session")
	}
}
