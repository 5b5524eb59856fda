package eap

import "fmt"

// MessageBuilder composes an outbound message in place inside an
// Environment's response buffer. It reserves builderOffset bytes of
// headroom so that a method-id byte and the 4-byte EAP header can both be
// prepended without copying the body.
//
// A MessageBuilder is obtained from Respond or LastMessage and is
// single-use: Build (or Abort) consumes it.
type MessageBuilder struct {
	env    Environment
	offset int
	length int
}

// Write appends data to the end of the message under construction.
func (b *MessageBuilder) Write(data []byte) *MessageBuilder {
	buf := b.env.ResponseBuffer()
	copy(buf[b.offset+b.length:b.offset+b.length+len(data)], data)
	b.length += len(data)
	return b
}

// Prepend grows the message backward, writing data immediately before the
// current start of the message. It is used to add a method-id byte ahead
// of a method's body, and by Build to stamp the EAP header. Prepend
// returns an InternalError-worthy condition via panic only when the
// reserved headroom is exhausted, which indicates a programming error
// (headroom is sized generously enough that well-formed callers never hit
// this).
func (b *MessageBuilder) Prepend(data []byte) *MessageBuilder {
	if b.offset < len(data) {
		panic(fmt.Sprintf("eap: message builder headroom exhausted: offset=%d need=%d", b.offset, len(data)))
	}
	buf := b.env.ResponseBuffer()
	copy(buf[b.offset-len(data):b.offset], data)
	b.offset -= len(data)
	b.length += len(data)
	return b
}

// Remaining reports how many more bytes can be appended before the
// response buffer is exhausted.
func (b *MessageBuilder) Remaining() int {
	return len(b.env.ResponseBuffer()) - b.offset - b.length
}

// Slice returns the bytes written so far, without the EAP header.
func (b *MessageBuilder) Slice() []byte {
	buf := b.env.ResponseBuffer()
	return buf[b.offset : b.offset+b.length]
}

// Abort discards the message under construction. The environment's
// response buffer state is left dirty (it was marked dirty when this
// builder was opened via Respond), so a subsequent retransmit attempt via
// LastMessage correctly reports no message.
func (b *MessageBuilder) Abort() {}

// Build prepends the 4-byte EAP header (code, identifier, big-endian
// total_length) and records the framed message in the environment's
// response buffer state, returning the complete, borrowed wire bytes.
func (b *MessageBuilder) Build(code Code, identifier uint8) ([]byte, error) {
	totalLength := b.length + HeaderSize
	if totalLength > 0xFFFF {
		return nil, fmt.Errorf("%w: total_length %d overflows uint16", ErrInternal, totalLength)
	}

	var header [HeaderSize]byte
	header[0] = byte(code)
	header[1] = identifier
	header[2] = byte(totalLength >> 8)
	header[3] = byte(totalLength)
	b.Prepend(header[:])

	b.env.setResponseBufferState(ResponseBufferState{
		dirty:  false,
		offset: b.offset,
		length: b.length,
	})

	return b.Slice(), nil
}
