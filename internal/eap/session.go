package eap

import "fmt"

// Status is the outcome of the most recent Start/Receive/Timeout call on a
// Session.
type Status uint8

// Session statuses, SPEC_FULL.md Section 6.
const (
	// StatusOk: the session continues; Response, if non-nil, should be
	// transmitted.
	StatusOk Status = iota
	// StatusSuccess: the session reached EAP Success.
	StatusSuccess
	// StatusFailed: the session reached a terminal failure; Response, if
	// non-nil, carries an EAP Failure packet to transmit.
	StatusFailed
	// StatusInternalError: an invariant was violated; Err names it. Per
	// SPEC_FULL.md Section 7, callers should treat this as fatal.
	StatusInternalError
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusSuccess:
		return "Success"
	case StatusFailed:
		return "Failed"
	case StatusInternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// StepResult is returned by every operation on a Session.
type StepResult struct {
	Status Status
	// Response borrows the Session's Environment response buffer; it is
	// valid only until the next operation on this Session.
	Response []byte
	// Reason is set when Status == StatusFailed.
	Reason FailReason
	// Err is set when Status == StatusInternalError.
	Err error
}

// sessionStateKind is the tag of the closed sessionState sum type,
// SPEC_FULL.md Section 3.
type sessionStateKind uint8

const (
	stateStart sessionStateKind = iota
	stateIdle
	stateMessagePending
	stateFinished
	stateFailed
)

// sessionState is the EAP-layer state variant. Only stateMessagePending
// uses expectedID/retransmissionCount; they are ignored otherwise.
type sessionState struct {
	kind                sessionStateKind
	expectedID          uint8
	retransmissionCount int
}

func okResult(response []byte) StepResult {
	return StepResult{Status: StatusOk, Response: response}
}

func successResult(response []byte) StepResult {
	return StepResult{Status: StatusSuccess, Response: response}
}

func failedResult(reason FailReason, response []byte) StepResult {
	return StepResult{Status: StatusFailed, Reason: reason, Response: response}
}

func internalErrorResult(err error) StepResult {
	return StepResult{Status: StatusInternalError, Err: err}
}

// buildFailurePacket frames an EAP Failure packet with the given
// identifier, recording it as the session's last message so a subsequent
// retransmit (if any) resends the same bytes.
func buildFailurePacket(env Environment, identifier uint8) ([]byte, error) {
	return Respond(env).Build(CodeFailure, identifier)
}

// buildSuccessPacket frames an EAP Success packet with the given
// identifier.
func buildSuccessPacket(env Environment, identifier uint8) ([]byte, error) {
	return Respond(env).Build(CodeSuccess, identifier)
}

// retransmitLast looks up the environment's last framed message for a
// byte-for-byte retransmit. It is an internal-error condition if nothing
// has ever been framed — SPEC_FULL.md Section 7 lists this among
// InternalError's examples.
func retransmitLast(env Environment) ([]byte, error) {
	b, ok := LastMessage(env)
	if !ok {
		return nil, internalError("retransmit requested with no last message recorded")
	}
	return b.Slice(), nil
}
