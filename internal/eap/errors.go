package eap

import (
	"errors"
	"fmt"
)

// ErrInternal is wrapped by errors that indicate a violated invariant or
// API misuse (Start called twice, retransmit requested with nothing to
// retransmit) rather than a wire-level or negotiation problem. Per
// SPEC_FULL.md Section 7, callers should treat ErrInternal as fatal.
var ErrInternal = errors.New("eap: internal error")

func internalError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

// FailReason classifies why a Session transitioned to StatusFailed.
type FailReason uint8

// Failure reasons, SPEC_FULL.md Section 7.
const (
	// FailInvalidMessage indicates the invalid-message threshold was
	// exceeded, or the multiplexer or the selected method reported failure
	// (for example an unusable NAK, a mismatched method type, or a
	// rejected MD5 digest).
	FailInvalidMessage FailReason = iota + 1
	// FailEndOfConversation indicates an inbound Failure packet was
	// accepted in a valid state.
	FailEndOfConversation
	// FailTimeout indicates the retransmit threshold (Authenticator) or
	// the idle-timeout threshold (Peer) was exceeded.
	FailTimeout
)

func (r FailReason) String() string {
	switch r {
	case FailInvalidMessage:
		return "InvalidMessage"
	case FailEndOfConversation:
		return "EndOfConversation"
	case FailTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("FailReason(%d)", uint8(r))
	}
}

// FailureError wraps a FailReason as an error value. The session types
// report failures through StepResult.Reason and do not return a
// FailureError themselves.
type FailureError struct {
	Reason FailReason
}

func (e *FailureError) Error() string {
	return "eap: session failed: " + e.Reason.String()
}
