package eap

// AuthMultiplexer owns the Authenticator's ordered collection of
// configured methods, selects among them, and implements NAK negotiation
// (RFC 3748 Section 5.3.1), SPEC_FULL.md Section 4.2.
type AuthMultiplexer struct {
	methods        []AuthMethod
	selected       int
	peerHasSentNAK bool
}

// NewAuthMultiplexer returns a multiplexer over methods in configuration
// order; the first method is started first.
func NewAuthMultiplexer(methods ...AuthMethod) *AuthMultiplexer {
	return &AuthMultiplexer{methods: methods}
}

// Start begins the currently-selected method (the first configured one, on
// a fresh multiplexer).
func (m *AuthMultiplexer) Start(env Environment) (Output, error) {
	return m.prependSelected(m.methods[m.selected].Start(env))
}

// Recv routes a Response's method payload to the selected method, or
// handles a NAK (method type 3).
func (m *AuthMultiplexer) Recv(pkt Packet, env Environment) (Output, error) {
	methodType, ok := pkt.MethodType()
	if !ok {
		return FailedOutput(), nil
	}
	payload := pkt.MethodPayload()

	if methodType == MethodNAK {
		return m.handleNAK(payload, env)
	}
	if methodType != m.methods[m.selected].MethodID() {
		return FailedOutput(), nil
	}

	out, err := m.methods[m.selected].Recv(payload, RecvMeta{Packet: pkt}, env)
	if err != nil {
		return Output{}, err
	}
	return m.dispatch(out, env)
}

// dispatch applies the shared post-processing for a method's Output:
// OutputSend gets the method-id byte prepended, OutputNextLayer advances
// to the next configured method and starts it.
func (m *AuthMultiplexer) dispatch(out Output, env Environment) (Output, error) {
	switch out.Kind {
	case OutputSend:
		return m.prependSelected(out, nil)
	case OutputNextLayer:
		m.selected++
		if m.selected >= len(m.methods) {
			return FailedOutput(), nil
		}
		next, err := m.methods[m.selected].Start(env)
		if err != nil {
			return Output{}, err
		}
		return m.prependSelected(next, nil)
	default:
		return out, nil
	}
}

// handleNAK implements SPEC_FULL.md Section 4.2's NAK rules: at most one
// NAK per session, select the first configured NAK-selectable method the
// peer's proposal list also names.
func (m *AuthMultiplexer) handleNAK(proposals []byte, env Environment) (Output, error) {
	if m.peerHasSentNAK {
		return FailedOutput(), nil
	}
	m.peerHasSentNAK = true

	for i, method := range m.methods {
		if !method.SelectableByNAK() || !containsByte(proposals, byte(method.MethodID())) {
			continue
		}
		m.selected = i
		out, err := method.Start(env)
		if err != nil {
			return Output{}, err
		}
		return m.prependSelected(out, nil)
	}
	return FailedOutput(), nil
}

func (m *AuthMultiplexer) prependSelected(out Output, err error) (Output, error) {
	if err != nil {
		return Output{}, err
	}
	if out.Kind == OutputSend {
		out.Builder.Prepend([]byte{byte(m.methods[m.selected].MethodID())})
	}
	return out, nil
}

func containsByte(haystack []byte, b byte) bool {
	for _, v := range haystack {
		if v == b {
			return true
		}
	}
	return false
}
