package eap

// PeerMultiplexer owns the Peer's ordered collection of configured
// methods and routes inbound Request payloads to whichever is currently
// selected, switching (and NAK-ing) as directed by the Authenticator,
// SPEC_FULL.md Section 4.3.
type PeerMultiplexer struct {
	methods     []PeerMethod
	selected    int
	hasSelected bool
}

// NewPeerMultiplexer returns a multiplexer over methods in configuration
// order.
func NewPeerMultiplexer(methods ...PeerMethod) *PeerMultiplexer {
	return &PeerMultiplexer{methods: methods}
}

// Start is a no-op: the Peer never initiates, only responds once the
// Authenticator sends the first Request.
func (m *PeerMultiplexer) Start(Environment) (Output, error) { return NoopOutput(), nil }

// CanSucceed reports the active method's advisory, or nil (ambivalent) if
// no method has been selected yet.
func (m *PeerMultiplexer) CanSucceed() *bool {
	if !m.hasSelected {
		return nil
	}
	return m.methods[m.selected].CanSucceed()
}

// Recv implements SPEC_FULL.md Section 4.3's routing: deliver to the
// active method if the type byte matches; otherwise switch to a
// configured method with that id, or NAK if none is configured.
func (m *PeerMultiplexer) Recv(pkt Packet, env Environment) (Output, error) {
	methodType, ok := pkt.MethodType()
	if !ok {
		return FailedOutput(), nil
	}
	payload := pkt.MethodPayload()

	if m.hasSelected && methodType == m.methods[m.selected].MethodID() {
		return m.routeToSelected(payload, pkt, env)
	}

	if idx, found := m.findByID(methodType); found {
		m.selected = idx
		m.hasSelected = true
		return m.routeToSelected(payload, pkt, env)
	}

	return m.nak(env)
}

func (m *PeerMultiplexer) routeToSelected(payload []byte, pkt Packet, env Environment) (Output, error) {
	out, err := m.methods[m.selected].Recv(payload, RecvMeta{Packet: pkt}, env)
	if err != nil {
		return Output{}, err
	}
	if out.Kind == OutputSend {
		out.Builder.Prepend([]byte{byte(m.methods[m.selected].MethodID())})
	}
	return out, nil
}

func (m *PeerMultiplexer) findByID(id MethodType) (int, bool) {
	for i, method := range m.methods {
		if method.MethodID() == id {
			return i, true
		}
	}
	return 0, false
}

func (m *PeerMultiplexer) nak(env Environment) (Output, error) {
	var proposal []byte
	for _, method := range m.methods {
		if method.SelectableByNAK() {
			proposal = append(proposal, byte(method.MethodID()))
		}
	}
	builder := Respond(env).Write(proposal)
	builder.Prepend([]byte{byte(MethodNAK)})
	return SendOutput(builder), nil
}
