package model

import "fmt"

// TransitionKind enumerates the closed set of execution transitions the state persister
// can apply. Dispatch over this enum replaces any string-keyed operation matching, so a
// new transition is a compile-time exercise.
type TransitionKind int

const (
	// TransitionAdvanceWave merges a monitor snapshot into the current wave and, when the
	// wave is complete, moves the execution to the next wave or readies it for completion.
	TransitionAdvanceWave TransitionKind = iota
	// TransitionEnterApproval pauses the execution at an approval gate, recording the
	// issued callback token atomically with the pause.
	TransitionEnterApproval
	// TransitionResume returns a paused execution to RUNNING, consuming its active token.
	TransitionResume
	// TransitionCancel moves the execution to CANCELLED.
	TransitionCancel
	// TransitionFail moves the execution to FAILED with a structured reason.
	TransitionFail
	// TransitionComplete moves the execution to COMPLETED.
	TransitionComplete
	// TransitionRequestCancellation sets the advisory cancellation flag without changing
	// the execution status; the orchestrator honors it once the in-flight wave resolves.
	TransitionRequestCancellation
)

// String returns the name of the transition kind.
func (k TransitionKind) String() string {
	switch k {
	case TransitionAdvanceWave:
		return "ADVANCE_WAVE"
	case TransitionEnterApproval:
		return "ENTER_APPROVAL"
	case TransitionResume:
		return "RESUME"
	case TransitionCancel:
		return "CANCEL"
	case TransitionFail:
		return "FAIL"
	case TransitionComplete:
		return "COMPLETE"
	case TransitionRequestCancellation:
		return "REQUEST_CANCELLATION"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// Transition is the tagged union handed to the state persister's Apply. Exactly the
// fields relevant to the Kind are populated; constructors below are the only intended
// way to build one.
type Transition struct {
	Kind TransitionKind

	// Snapshot carries the monitor output for AdvanceWave.
	Snapshot *WaveStatusSnapshot
	// Token carries the freshly issued callback token for EnterApproval.
	Token *CallbackToken
	// Reason carries the structured reason for Cancel and Fail.
	Reason string
	// JobID carries the submitted remote job ID for an AdvanceWave that starts a wave.
	JobID string
}

// AdvanceWave builds a transition that merges a poll snapshot into the current wave.
// A nil snapshot with a non-empty jobID records job submission for a freshly started wave.
func AdvanceWave(snapshot *WaveStatusSnapshot, jobID string) Transition {
	return Transition{Kind: TransitionAdvanceWave, Snapshot: snapshot, JobID: jobID}
}

// EnterApproval builds a transition that pauses the execution with the given token.
// The snapshot, when present, records the final counts of the gated wave alongside
// the pause; it may be nil when no fresh poll result is available.
func EnterApproval(token *CallbackToken, snapshot *WaveStatusSnapshot) Transition {
	return Transition{Kind: TransitionEnterApproval, Token: token, Snapshot: snapshot}
}

// Resume builds a transition that returns a paused execution to RUNNING.
func Resume() Transition {
	return Transition{Kind: TransitionResume}
}

// Cancel builds a transition that moves the execution to CANCELLED.
func Cancel(reason string) Transition {
	return Transition{Kind: TransitionCancel, Reason: reason}
}

// Fail builds a transition that moves the execution to FAILED.
func Fail(reason string) Transition {
	return Transition{Kind: TransitionFail, Reason: reason}
}

// Complete builds a transition that moves the execution to COMPLETED.
func Complete() Transition {
	return Transition{Kind: TransitionComplete}
}

// RequestCancellation builds a transition that sets the advisory cancellation flag.
func RequestCancellation() Transition {
	return Transition{Kind: TransitionRequestCancellation}
}
