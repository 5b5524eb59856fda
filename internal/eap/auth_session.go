package eap

// AuthSession is the Authenticator-role EAP state machine (RFC 3748
// Section 4), SPEC_FULL.md Section 4.1. It issues Requests, tracks the
// identifier of the Response it is waiting for, retransmits on Timeout,
// and frames Success/Failure.
type AuthSession struct {
	env            Environment
	mux            *AuthMultiplexer
	state          sessionState
	nextID         uint8
	invalidCount   int
	terminalReason FailReason
}

// NewAuthSession constructs an Authenticator session over env, driving mux.
func NewAuthSession(env Environment, mux *AuthMultiplexer) *AuthSession {
	return &AuthSession{env: env, mux: mux, state: sessionState{kind: stateStart}}
}

// Start begins the session: draws a random initial identifier, starts the
// method multiplexer, and frames the first Request. It is an
// InternalError to call Start more than once.
func (s *AuthSession) Start() StepResult {
	if s.state.kind != stateStart {
		return internalErrorResult(internalError("start called on a session that already started"))
	}

	var idByte [1]byte
	s.env.FillRandom(idByte[:])
	s.nextID = idByte[0]

	out, err := s.mux.Start(s.env)
	if err != nil {
		return internalErrorResult(err)
	}
	return s.applyOutput(out)
}

// Receive parses and processes an inbound EAP packet.
func (s *AuthSession) Receive(raw []byte) StepResult {
	switch s.state.kind {
	case stateFinished:
		return successResult(nil)
	case stateFailed:
		return failedResult(s.terminalReason, nil)
	}

	pkt, err := Parse(raw)
	if err != nil {
		return s.invalid()
	}

	switch s.state.kind {
	case stateStart, stateIdle:
		return s.invalid()
	case stateMessagePending:
		return s.receiveMessagePending(pkt)
	default:
		return internalErrorResult(internalError("unreachable session state %d", s.state.kind))
	}
}

func (s *AuthSession) receiveMessagePending(pkt Packet) StepResult {
	if pkt.Code != CodeResponse || pkt.Identifier != s.state.expectedID {
		return s.invalid()
	}
	s.invalidCount = 0

	out, err := s.mux.Recv(pkt, s.env)
	if err != nil {
		return internalErrorResult(err)
	}
	return s.applyOutput(out)
}

// Timeout retransmits the last-sent message (bounded by
// MaxRetransmitCount) when waiting for a Response; it has no effect
// outside MessagePending.
func (s *AuthSession) Timeout() StepResult {
	if s.state.kind != stateMessagePending {
		return okResult(nil)
	}

	s.state.retransmissionCount++
	if s.state.retransmissionCount >= s.env.MaxRetransmitCount() {
		return s.fail(FailTimeout)
	}

	resp, err := retransmitLast(s.env)
	if err != nil {
		return internalErrorResult(err)
	}
	return okResult(resp)
}

// applyOutput handles a multiplexer Output uniformly, whether it came from
// Start or from routing an inbound Response.
func (s *AuthSession) applyOutput(out Output) StepResult {
	switch out.Kind {
	case OutputNoop:
		return okResult(nil)
	case OutputSend:
		resp, err := s.sendNewRequest(out.Builder)
		if err != nil {
			return internalErrorResult(err)
		}
		return okResult(resp)
	case OutputFinished:
		resp, err := buildSuccessPacket(s.env, s.lastSentID())
		if err != nil {
			return internalErrorResult(err)
		}
		s.state = sessionState{kind: stateFinished}
		return successResult(resp)
	case OutputFailed:
		return s.fail(FailInvalidMessage)
	default:
		return internalErrorResult(internalError("unexpected output kind %d", out.Kind))
	}
}

// sendNewRequest frames a new Request using nextID, then advances nextID
// and transitions to MessagePending awaiting a Response with that same
// identifier.
func (s *AuthSession) sendNewRequest(builder *MessageBuilder) ([]byte, error) {
	identifier := s.nextID
	resp, err := builder.Build(CodeRequest, identifier)
	if err != nil {
		return nil, err
	}
	s.nextID++
	s.state = sessionState{kind: stateMessagePending, expectedID: identifier}
	return resp, nil
}

// lastSentID is the identifier of the most recently sent Request: nextID
// always points at the identifier reserved for the *next* new Request.
func (s *AuthSession) lastSentID() uint8 { return s.nextID - 1 }

func (s *AuthSession) invalid() StepResult {
	s.invalidCount++
	if s.invalidCount >= s.env.MaxInvalidMessageCount() {
		return s.fail(FailInvalidMessage)
	}
	return okResult(nil)
}

func (s *AuthSession) fail(reason FailReason) StepResult {
	resp, err := buildFailurePacket(s.env, s.nextID)
	if err != nil {
		return internalErrorResult(err)
	}
	s.state = sessionState{kind: stateFailed}
	s.terminalReason = reason
	return failedResult(reason, resp)
}
