package eap

// PeerSession is the Peer-role EAP state machine (RFC 3748 Section 4),
// SPEC_FULL.md Section 4.1. It never initiates; it answers each Request
// with a Response carrying the same identifier, recognizes a duplicate
// identifier as a request to retransmit its last Response, and only
// counts Timeout toward failure — it never retransmits on Timeout.
type PeerSession struct {
	env            Environment
	mux            *PeerMultiplexer
	state          sessionState
	nextID         uint8
	timedOutCount  int
	invalidCount   int
	terminalReason FailReason
}

// NewPeerSession constructs a Peer session over env, driving mux.
func NewPeerSession(env Environment, mux *PeerMultiplexer) *PeerSession {
	return &PeerSession{env: env, mux: mux, state: sessionState{kind: stateStart}}
}

// Start moves Start to Idle. The Peer has nothing to send until the
// Authenticator's first Request arrives.
func (s *PeerSession) Start() StepResult {
	if s.state.kind != stateStart {
		return internalErrorResult(internalError("start called on a session that already started"))
	}
	s.state = sessionState{kind: stateIdle}

	out, err := s.mux.Start(s.env)
	if err != nil {
		return internalErrorResult(err)
	}
	return s.applyOutput(out)
}

// Receive parses and processes an inbound EAP packet. Per RFC 3748
// Section 4.2, any received packet resets the timeout counter.
func (s *PeerSession) Receive(raw []byte) StepResult {
	switch s.state.kind {
	case stateFinished:
		return successResult(nil)
	case stateFailed:
		return failedResult(s.terminalReason, nil)
	}
	s.timedOutCount = 0

	pkt, err := Parse(raw)
	if err != nil {
		return s.invalid()
	}

	switch s.state.kind {
	case stateStart, stateIdle:
		return s.receiveIdle(pkt)
	case stateMessagePending:
		return s.receiveMessagePending(pkt)
	default:
		return internalErrorResult(internalError("unreachable session state %d", s.state.kind))
	}
}

// receiveIdle handles the first Request of the conversation (or a
// premature Failure). Any other code is invalid: the Peer has nothing
// outstanding to be a Response or Success to.
func (s *PeerSession) receiveIdle(pkt Packet) StepResult {
	switch pkt.Code {
	case CodeRequest:
		s.invalidCount = 0
		s.nextID = pkt.Identifier

		out, err := s.mux.Recv(pkt, s.env)
		if err != nil {
			return internalErrorResult(err)
		}
		return s.applyOutput(out)
	case CodeFailure:
		s.state = sessionState{kind: stateFailed}
		s.terminalReason = FailEndOfConversation
		return failedResult(FailEndOfConversation, nil)
	default:
		return s.invalid()
	}
}

// receiveMessagePending implements the Peer's duplicate/new-Request
// distinction. lastRequestID (nextID-1) and the recorded expectedID are
// the same value by construction of sendResponse; both are consulted
// here, mirroring the two independent checks of the reference EAP-TLS
// implementation this multiplexing was ported from.
func (s *PeerSession) receiveMessagePending(pkt Packet) StepResult {
	lastRequestID := s.nextID - 1

	if pkt.Code == CodeSuccess && boolValue(s.mux.CanSucceed()) && pkt.Identifier == lastRequestID {
		s.state = sessionState{kind: stateFinished}
		return successResult(nil)
	}

	if pkt.Identifier == s.state.expectedID {
		resp, err := retransmitLast(s.env)
		if err != nil {
			return internalErrorResult(err)
		}
		return okResult(resp)
	}

	if pkt.Identifier != s.nextID {
		return s.invalid()
	}

	switch pkt.Code {
	case CodeResponse:
		return s.invalid()
	case CodeFailure:
		s.state = sessionState{kind: stateFailed}
		s.terminalReason = FailEndOfConversation
		return failedResult(FailEndOfConversation, nil)
	default:
		out, err := s.mux.Recv(pkt, s.env)
		if err != nil {
			return internalErrorResult(err)
		}
		return s.applyOutput(out)
	}
}

// Timeout only ever counts toward MaxTimeoutCount; the Peer retransmits
// solely in response to a duplicate-identifier Request, never on its own
// timer (SPEC_FULL.md Section 9, Open Question: Peer retransmission).
func (s *PeerSession) Timeout() StepResult {
	switch s.state.kind {
	case stateFinished:
		return successResult(nil)
	case stateFailed:
		return failedResult(s.terminalReason, nil)
	}

	s.timedOutCount++
	if s.timedOutCount >= s.env.MaxTimeoutCount() {
		return s.fail(FailTimeout)
	}
	return okResult(nil)
}

// applyOutput handles a multiplexer Output uniformly, whether it came
// from Start or from routing an inbound Request.
func (s *PeerSession) applyOutput(out Output) StepResult {
	switch out.Kind {
	case OutputNoop:
		return okResult(nil)
	case OutputSend:
		resp, err := s.sendResponse(out.Builder)
		if err != nil {
			return internalErrorResult(err)
		}
		return okResult(resp)
	case OutputFinished:
		s.state = sessionState{kind: stateFinished}
		return successResult(nil)
	case OutputFailed:
		return s.fail(FailInvalidMessage)
	default:
		return internalErrorResult(internalError("unexpected output kind %d", out.Kind))
	}
}

// sendResponse frames a Response reusing the identifier of the Request
// that triggered it, then advances nextID and transitions to
// MessagePending awaiting either a new Request or a retransmitted one.
func (s *PeerSession) sendResponse(builder *MessageBuilder) ([]byte, error) {
	identifier := s.nextID
	resp, err := builder.Build(CodeResponse, identifier)
	if err != nil {
		return nil, err
	}
	s.nextID++
	s.state = sessionState{kind: stateMessagePending, expectedID: identifier}
	return resp, nil
}

func (s *PeerSession) invalid() StepResult {
	s.invalidCount++
	if s.invalidCount >= s.env.MaxInvalidMessageCount() {
		return s.fail(FailInvalidMessage)
	}
	return okResult(nil)
}

// fail frames a Failure packet even though the Peer did not originate
// the conversation: a locally-detected failure (invalid message budget
// exhausted, an inner method rejecting a Response) still needs a wire
// representation so the transport layer has something to send before
// tearing the session down.
func (s *PeerSession) fail(reason FailReason) StepResult {
	resp, err := buildFailurePacket(s.env, s.nextID)
	if err != nil {
		return internalErrorResult(err)
	}
	s.state = sessionState{kind: stateFailed}
	s.terminalReason = reason
	return failedResult(reason, resp)
}
