package chat

// ChallengeStatus is the state of the out-of-band verification sub-flow.
// Transitions are strictly requires_code -> in_progress -> completed.
//
// The sub-flow is a UI state machine exercise only: no real code is delivered
// or checked, and it must not be treated as a security control.
type ChallengeStatus string

const (
	ChallengeRequiresCode ChallengeStatus = "requires_code"
	ChallengeInProgress   ChallengeStatus = "in_progress"
	ChallengeCompleted    ChallengeStatus = "completed"
)

// ChallengeIssuedNotice is the assistant content appended when a challenge is
// issued.
const ChallengeIssuedNotice = "A verification code has been sent to your registered device. Enter it to continue."

// CanTransition reports whether moving from to next is a legal challenge
// transition.
func (s ChallengeStatus) CanTransition(next ChallengeStatus) bool {
	switch s {
	case ChallengeRequiresCode:
		return next == ChallengeInProgress
	case ChallengeInProgress:
		return next == ChallengeCompleted
	default:
		return false
	}
}
