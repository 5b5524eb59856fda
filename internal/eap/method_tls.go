package eap

import (
	"encoding/binary"

	"github.com/dantte-lp/goeap/internal/eap/tlsengine"
)

// EAP-TLS fragmentation constants, RFC 5216 Section 2.1.
const (
	tlsFlagLengthIncluded byte = 0b1000_0000 // L
	tlsFlagMoreFragments  byte = 0b0100_0000 // M
	tlsFlagStart          byte = 0b0010_0000 // S

	tlsLengthFieldLen = 4
	tlsFragmentMTU    = 512
)

// tlsSendState is the fragment-emission progression, SPEC_FULL.md Section 3.
type tlsSendState struct {
	mid         bool // true once the first fragment of the current payload has gone out
	totalLength int  // meaningful only when !mid (NewPayload{total_length})
}

// tlsCore holds the fragmentation/reassembly logic shared by the
// Authenticator and Peer sides of EAP-TLS; they differ only in whether a
// completed handshake is reported as Finished immediately (returnOnFinish)
// or left for the EAP layer's own Success framing to close out.
type tlsCore struct {
	engine         tlsengine.Engine
	send           tlsSendState
	finished       bool
	returnOnFinish bool
}

func newTLSCore(engine tlsengine.Engine, returnOnFinish bool) *tlsCore {
	return &tlsCore{engine: engine, returnOnFinish: returnOnFinish}
}

// process implements SPEC_FULL.md Section 4.6's receive-then-send pass. It
// never returns a Go error for protocol-level problems (empty message,
// engine desync) — those collapse to FailedOutput, per Section 7.
func (c *tlsCore) process(msg []byte, env Environment) (Output, error) {
	if len(msg) == 0 {
		return FailedOutput(), nil
	}

	flags := msg[0]
	lengthIncluded := flags&tlsFlagLengthIncluded != 0
	moreFragments := flags&tlsFlagMoreFragments != 0
	start := flags&tlsFlagStart != 0
	onlyACK := moreFragments

	hasData := len(msg) > 1
	if hasData || start {
		payload := msg[1:]
		if lengthIncluded {
			if len(payload) < tlsLengthFieldLen {
				return FailedOutput(), nil
			}
			payload = payload[tlsLengthFieldLen:]
		}

		n, err := c.engine.ReadTLS(payload)
		if err != nil || n != len(payload) {
			return FailedOutput(), nil
		}
		if err := c.engine.ProcessNewPackets(); err != nil {
			return FailedOutput(), nil
		}
		c.send = tlsSendState{mid: false, totalLength: c.engine.TLSBytesToWrite()}
	}

	if !c.engine.IsHandshaking() && (c.send.mid || c.send.totalLength == 0) {
		c.finished = true
		if c.returnOnFinish {
			return FinishedOutput(), nil
		}
	}

	return c.buildFragment(onlyACK, env)
}

func (c *tlsCore) buildFragment(onlyACK bool, env Environment) (Output, error) {
	if onlyACK {
		return SendOutput(Respond(env).Write([]byte{0x00})), nil
	}

	builder := Respond(env)
	isFirst := !c.send.mid

	var header [1 + tlsLengthFieldLen]byte
	headerLen := 1
	if isFirst {
		binary.BigEndian.PutUint32(header[1:], uint32(c.send.totalLength))
		headerLen = 1 + tlsLengthFieldLen
	}

	// Reserve the flags (+ optional length) header bytes with a
	// placeholder write, then fill the remainder of the MTU with drained
	// TLS engine output, and patch the flags byte once M is known.
	builder.Write(header[:headerLen])

	maxPayload := tlsFragmentMTU - headerLen
	payload := make([]byte, maxPayload)
	n, err := c.engine.WriteTLS(payload)
	if err != nil {
		return FailedOutput(), nil
	}
	builder.Write(payload[:n])

	moreFragments := c.engine.TLSBytesToWrite() > 0
	c.send.mid = true

	flags := byte(0)
	if isFirst {
		flags |= tlsFlagLengthIncluded
	}
	if moreFragments {
		flags |= tlsFlagMoreFragments
	}

	slice := builder.Slice()
	slice[0] = flags

	return SendOutput(builder), nil
}

// tlsAuthMethod is the Authenticator side of EAP-TLS (RFC 5216): it
// terminates the EAP-TLS conversation itself once the handshake completes
// (returnOnFinish = true).
type tlsAuthMethod struct {
	*tlsCore
}

// NewTLSAuthMethod returns the Authenticator-side EAP-TLS method driving
// engine.
func NewTLSAuthMethod(engine tlsengine.Engine) AuthMethod {
	return &tlsAuthMethod{tlsCore: newTLSCore(engine, true)}
}

func (*tlsAuthMethod) MethodID() MethodType  { return MethodTLS }
func (*tlsAuthMethod) SelectableByNAK() bool { return false }

func (m *tlsAuthMethod) Start(env Environment) (Output, error) {
	return SendOutput(Respond(env).Write([]byte{tlsFlagStart})), nil
}

func (m *tlsAuthMethod) Recv(payload []byte, _ RecvMeta, env Environment) (Output, error) {
	return m.process(payload, env)
}

// tlsPeerMethod is the Peer side of EAP-TLS: it never unilaterally
// declares the handshake finished (returnOnFinish = false), waiting
// instead for the Authenticator's EAP Success.
type tlsPeerMethod struct {
	*tlsCore
}

// NewTLSPeerMethod returns the Peer-side EAP-TLS method driving engine.
func NewTLSPeerMethod(engine tlsengine.Engine) PeerMethod {
	return &tlsPeerMethod{tlsCore: newTLSCore(engine, false)}
}

func (*tlsPeerMethod) MethodID() MethodType  { return MethodTLS }
func (*tlsPeerMethod) SelectableByNAK() bool { return false }

func (m *tlsPeerMethod) CanSucceed() *bool { return boolPtr(m.finished) }

func (m *tlsPeerMethod) Recv(payload []byte, _ RecvMeta, env Environment) (Output, error) {
	return m.process(payload, env)
}
