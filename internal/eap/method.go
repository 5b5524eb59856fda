package eap

// RecvMeta carries the full parsed inbound packet alongside the
// method-payload bytes handed to a method's Recv. Most methods only need
// the identifier (MD5-Challenge's hash input), but the seam is general per
// SPEC_FULL.md Section 12 so a future method can read other header fields
// without an interface change.
type RecvMeta struct {
	Packet Packet
}

// OutputKind discriminates the terminal signal a method or multiplexer
// hands back up to the EAP state machine, SPEC_FULL.md Section 4.2.
type OutputKind uint8

const (
	// OutputNoop: no state change, nothing to send.
	OutputNoop OutputKind = iota
	// OutputSend: Builder holds a message body ready to be framed.
	OutputSend
	// OutputFinished: the method (or multiplexer) completed successfully.
	OutputFinished
	// OutputFailed: the method (or multiplexer) failed.
	OutputFailed
	// OutputNextLayer: advance to the next configured method and start it
	// (Authenticator-side only; used by Identity to hand off).
	OutputNextLayer
)

// Output is the result of a Start or Recv call on a method, or of routing
// through a multiplexer.
type Output struct {
	Kind    OutputKind
	Builder *MessageBuilder
}

// SendOutput wraps a MessageBuilder holding a not-yet-framed body.
func SendOutput(b *MessageBuilder) Output { return Output{Kind: OutputSend, Builder: b} }

// FinishedOutput reports method/negotiation completion.
func FinishedOutput() Output { return Output{Kind: OutputFinished} }

// FailedOutput reports method/negotiation failure.
func FailedOutput() Output { return Output{Kind: OutputFailed} }

// NextLayerOutput requests the Authenticator-side multiplexer advance to
// the next configured method.
func NextLayerOutput() Output { return Output{Kind: OutputNextLayer} }

// NoopOutput reports nothing to do.
func NoopOutput() Output { return Output{Kind: OutputNoop} }

// AuthMethod is the capability set an Authenticator-side method satisfies.
type AuthMethod interface {
	// MethodID is the wire method-type byte this method implements.
	MethodID() MethodType
	// SelectableByNAK reports whether a Peer may choose this method via a
	// NAK response (RFC 3748 Section 5.3.1).
	SelectableByNAK() bool
	// Start begins the method, typically emitting its first challenge.
	Start(env Environment) (Output, error)
	// Recv handles the method-payload bytes of a matching Response.
	Recv(payload []byte, meta RecvMeta, env Environment) (Output, error)
}

// PeerMethod is the capability set a Peer-side method satisfies. Peer
// methods have no Start hook: the Peer never initiates, only responds
// (SPEC_FULL.md Section 12).
type PeerMethod interface {
	// MethodID is the wire method-type byte this method implements.
	MethodID() MethodType
	// SelectableByNAK reports whether this method may be offered in a NAK.
	SelectableByNAK() bool
	// CanSucceed is the method's advisory on whether an EAP Success may
	// currently be accepted: true, false, or nil (ambivalent/unknown).
	CanSucceed() *bool
	// Recv handles the method-payload bytes of an inbound Request.
	Recv(payload []byte, meta RecvMeta, env Environment) (Output, error)
}

func boolPtr(b bool) *bool { return &b }

// boolValue reads a CanSucceed advisory, treating nil (ambivalent) as false.
func boolValue(b *bool) bool { return b != nil && *b }
