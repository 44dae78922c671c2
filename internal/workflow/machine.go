package workflow

import "github.com/eligify/eligify/internal/models"

// Advance applies one event to a session and returns the next state.
// It is a pure function: no I/O, no clock, no logging. The caller is
// responsible for persisting the returned state before acting on it.
//
// Step layout:
//
//	PhoneEntry -> OtpChallenge -> (ArtifactDisplay | ProfileForm) -> ArtifactDisplay
//
// ArtifactDisplay is terminal for a successful run; Reset is the only
// way back to PhoneEntry with a full wipe.
func Advance(state models.WorkflowState, ev Event) (models.WorkflowState, error) {
	switch e := ev.(type) {
	case Reset:
		return models.NewWorkflowState("", state.Generation+1), nil

	case PhoneSubmitted:
		if state.Step != models.StepPhoneEntry {
			return state, &TransitionError{Step: state.Step, Event: ev.eventName()}
		}
		state.PhoneNumber = e.Phone
		return state, nil

	case OtpSent:
		if state.Step != models.StepPhoneEntry {
			return state, &TransitionError{Step: state.Step, Event: ev.eventName()}
		}
		state.Step = models.StepOtpChallenge
		return state, nil

	case BackToPhone:
		if state.Step != models.StepOtpChallenge {
			return state, &TransitionError{Step: state.Step, Event: ev.eventName()}
		}
		state.Step = models.StepPhoneEntry
		state.OtpVerified = false
		return state, nil

	case VerdictReached:
		if state.Step != models.StepOtpChallenge {
			return state, &TransitionError{Step: state.Step, Event: ev.eventName()}
		}
		switch e.Verdict.Kind {
		case VerdictAlreadyEligible:
			state.OtpVerified = true
			state.IsEligibleCustomer = true
			state.EligibilityAmount = e.Verdict.Amount
			state.EligibilityTenureDays = e.Verdict.TenureDays
			state.CustomerID = e.Verdict.CustomerID
		case VerdictNeedsProfile, VerdictExpired:
			state.OtpVerified = true
		case VerdictNotEligible:
			// Terminal for the attempt. The step does not move; the
			// controller blocks further submissions until reset.
		}
		return state, nil

	case AdvanceToProfile:
		if state.Step != models.StepOtpChallenge || !state.OtpVerified || state.IsEligibleCustomer {
			return state, &TransitionError{Step: state.Step, Event: ev.eventName()}
		}
		state.Step = models.StepProfileForm
		return state, nil

	case ProfileAccepted:
		if state.Step != models.StepProfileForm {
			return state, &TransitionError{Step: state.Step, Event: ev.eventName()}
		}
		profile := e.Profile
		state.Profile = &profile
		state.IsEligibleCustomer = true
		state.CustomerID = e.CustomerID
		state.EligibilityAmount = e.Amount
		state.EligibilityTenureDays = e.TenureDays
		return state, nil

	case ArtifactReady:
		if state.Step != models.StepOtpChallenge && state.Step != models.StepProfileForm {
			return state, &TransitionError{Step: state.Step, Event: ev.eventName()}
		}
		if !state.IsEligibleCustomer {
			return state, &TransitionError{Step: state.Step, Event: ev.eventName()}
		}
		state.Step = models.StepArtifactDisplay
		state.ArtifactURL = e.URL
		return state, nil

	default:
		return state, &TransitionError{Step: state.Step, Event: ev.eventName()}
	}
}
