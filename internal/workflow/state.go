package workflow

import "fmt"

const stepErrorTemplateConstant = "protected push failed in state %s: %v"

// State is a position in the protected push state machine.
type State string

// Run states, in order. StateFailed is terminal and reachable from any other state.
const (
	StateStart              State = "start"
	StateProtectionRemoved  State = "protection_removed"
	StateCommittedAndPushed State = "committed_and_pushed"
	StateProtectionRestored State = "protection_restored"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// StepError tags a failure with the state the run was in when it happened.
type StepError struct {
	State State
	Cause error
}

// Error describes the failure.
func (stepError StepError) Error() string {
	return fmt.Sprintf(stepErrorTemplateConstant, stepError.State, stepError.Cause)
}

// Unwrap exposes the underlying cause.
func (stepError StepError) Unwrap() error {
	return stepError.Cause
}
