package eap

import (
	"crypto/rand"
	"errors"
)

// defaultHeapBufferSize is the heap-backed Environment's default response
// buffer capacity: large enough for any single EAP-TLS fragment (512 bytes)
// plus headroom, per SPEC_FULL.md Section 6 ("Response buffer size").
const defaultHeapBufferSize = 1020

// builderOffset is the fixed headroom, in bytes, reserved at the start of
// the response buffer so that a method-id byte and the 4-byte EAP header
// can both be prepended without copying. One byte more than HeaderSize.
const builderOffset = HeaderSize + 1

// ResponseBufferState records whether the environment's response buffer
// currently holds a fully-built outbound message.
type ResponseBufferState struct {
	// dirty is true until a message has been built into the buffer, or
	// after a fresh MessageBuilder has been opened without being built.
	dirty  bool
	offset int
	length int
}

// Message reports the last built message's location, if any.
func (s ResponseBufferState) Message() (offset, length int, ok bool) {
	if s.dirty {
		return 0, 0, false
	}
	return s.offset, s.length, true
}

// Environment is the collaborator every Session step is given exclusive
// access to: it owns the outbound response buffer, supplies randomness,
// and holds configurable limits and the negotiated peer identity.
//
// An Environment is not safe for concurrent use; each Session owns its own.
type Environment interface {
	// Name returns the peer identity learned (Authenticator) or configured
	// (Peer) via the Identity method, if any.
	Name() []byte
	// SetName records the peer identity.
	SetName(name []byte)

	// FillRandom fills buf with cryptographically-adequate random bytes.
	FillRandom(buf []byte)

	// MaxInvalidMessageCount is the threshold at which a session fails with
	// FailInvalidMessage.
	MaxInvalidMessageCount() int
	// MaxRetransmitCount is the threshold at which a session fails with
	// FailTimeout during retransmission.
	MaxRetransmitCount() int
	// MaxTimeoutCount is the threshold at which accrued idle timeouts fail
	// a Peer session.
	MaxTimeoutCount() int

	// ResponseBuffer returns the full backing buffer for outbound message
	// composition.
	ResponseBuffer() []byte
	// ResponseBufferState returns the current framing state.
	ResponseBufferState() ResponseBufferState
	// setResponseBufferState is used by MessageBuilder and is not part of
	// the public collaborator contract callers construct against.
	setResponseBufferState(ResponseBufferState)
}

// Respond opens a fresh MessageBuilder over env's response buffer,
// discarding any previously framed message.
func Respond(env Environment) *MessageBuilder {
	env.setResponseBufferState(ResponseBufferState{dirty: true})
	return &MessageBuilder{env: env, offset: builderOffset}
}

// LastMessage returns a MessageBuilder positioned over the last message
// built into env's response buffer, or false if the buffer is dirty (no
// message has been built since the last Respond).
func LastMessage(env Environment) (*MessageBuilder, bool) {
	offset, length, ok := env.ResponseBufferState().Message()
	if !ok {
		return nil, false
	}
	return &MessageBuilder{env: env, offset: offset, length: length}, true
}

// RespondWith is a convenience for building a fixed-body message in one
// call, used by methods whose entire response is known up front (Identity,
// MD5-Challenge's request/response bodies).
func RespondWith(env Environment, code Code, identifier uint8, content []byte) ([]byte, error) {
	return Respond(env).Write(content).Build(code, identifier)
}

// heapEnvironment is the heap-backed Environment: a buffer allocated once
// at construction (defaultHeapBufferSize bytes) and never grown, suitable
// for general-purpose hosts that do not need to avoid allocation.
type heapEnvironment struct {
	name   []byte
	buffer []byte
	state  ResponseBufferState

	maxInvalidMessageCount int
	maxRetransmitCount     int
	maxTimeoutCount        int
}

// EnvironmentOption configures limits shared by both standard Environment
// constructors.
type EnvironmentOption func(*environmentLimits)

type environmentLimits struct {
	maxInvalidMessageCount int
	maxRetransmitCount     int
	maxTimeoutCount        int
}

func defaultLimits() environmentLimits {
	return environmentLimits{
		maxInvalidMessageCount: 10,
		maxRetransmitCount:     4,
		maxTimeoutCount:        10,
	}
}

// WithMaxInvalidMessageCount overrides the default invalid-message
// threshold (10).
func WithMaxInvalidMessageCount(n int) EnvironmentOption {
	return func(l *environmentLimits) { l.maxInvalidMessageCount = n }
}

// WithMaxRetransmitCount overrides the default retransmit threshold (4).
func WithMaxRetransmitCount(n int) EnvironmentOption {
	return func(l *environmentLimits) { l.maxRetransmitCount = n }
}

// WithMaxTimeoutCount overrides the default idle-timeout threshold (10).
func WithMaxTimeoutCount(n int) EnvironmentOption {
	return func(l *environmentLimits) { l.maxTimeoutCount = n }
}

// NewHeapEnvironment returns a heap-backed Environment with a
// defaultHeapBufferSize response buffer.
func NewHeapEnvironment(opts ...EnvironmentOption) Environment {
	l := defaultLimits()
	for _, opt := range opts {
		opt(&l)
	}
	return &heapEnvironment{
		buffer:                 make([]byte, defaultHeapBufferSize),
		state:                  ResponseBufferState{dirty: true},
		maxInvalidMessageCount: l.maxInvalidMessageCount,
		maxRetransmitCount:     l.maxRetransmitCount,
		maxTimeoutCount:        l.maxTimeoutCount,
	}
}

func (e *heapEnvironment) Name() []byte      { return e.name }
func (e *heapEnvironment) SetName(n []byte)  { e.name = append(e.name[:0], n...) }
func (e *heapEnvironment) FillRandom(b []byte) {
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read on a supported platform only fails if the OS
		// entropy source is unavailable, which this package cannot recover
		// from; panic rather than silently emit predictable challenges.
		panic("eap: crypto/rand unavailable: " + err.Error())
	}
}
func (e *heapEnvironment) MaxInvalidMessageCount() int { return e.maxInvalidMessageCount }
func (e *heapEnvironment) MaxRetransmitCount() int     { return e.maxRetransmitCount }
func (e *heapEnvironment) MaxTimeoutCount() int        { return e.maxTimeoutCount }
func (e *heapEnvironment) ResponseBuffer() []byte      { return e.buffer }
func (e *heapEnvironment) ResponseBufferState() ResponseBufferState { return e.state }
func (e *heapEnvironment) setResponseBufferState(s ResponseBufferState) { e.state = s }

// ErrFixedBufferTooSmall is returned by NewFixedEnvironment when the
// requested capacity cannot hold a header plus any method body.
var ErrFixedBufferTooSmall = errors.New("eap: fixed environment buffer too small")

// fixedEnvironment is the fixed-capacity Environment: its buffer is sized
// once at construction and never reallocated, for hosts that must bound
// memory use (e.g. an embedded supplicant).
type fixedEnvironment struct {
	heapEnvironment
}

// NewFixedEnvironment returns a fixed-capacity Environment backed by a
// buffer of exactly size bytes. size must be large enough to hold the
// largest message the caller intends to build (builderOffset plus the
// method payload); a size smaller than builderOffset+1 is rejected.
func NewFixedEnvironment(size int, opts ...EnvironmentOption) (Environment, error) {
	if size < builderOffset+1 {
		return nil, ErrFixedBufferTooSmall
	}
	l := defaultLimits()
	for _, opt := range opts {
		opt(&l)
	}
	return &fixedEnvironment{heapEnvironment{
		buffer:                 make([]byte, size),
		state:                  ResponseBufferState{dirty: true},
		maxInvalidMessageCount: l.maxInvalidMessageCount,
		maxRetransmitCount:     l.maxRetransmitCount,
		maxTimeoutCount:        l.maxTimeoutCount,
	}}, nil
}
