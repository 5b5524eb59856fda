package eap

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size in bytes of the fixed EAP header (RFC 3748 Section 4).
const HeaderSize = 4

// Code identifies the kind of an EAP message.
type Code uint8

// EAP codes, RFC 3748 Section 4.1.
const (
	CodeRequest  Code = 1
	CodeResponse Code = 2
	CodeSuccess  Code = 3
	CodeFailure  Code = 4
)

func (c Code) String() string {
	switch c {
	case CodeRequest:
		return "Request"
	case CodeResponse:
		return "Response"
	case CodeSuccess:
		return "Success"
	case CodeFailure:
		return "Failure"
	default:
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
}

// MethodType identifies the authentication method carried in a Request or
// Response body's first byte, RFC 3748 Section 5.
type MethodType uint8

// Method type identifiers used by this implementation.
const (
	MethodIdentity     MethodType = 1
	MethodNAK          MethodType = 3
	MethodMD5Challenge MethodType = 4
	MethodTLS          MethodType = 13
)

func (m MethodType) String() string {
	switch m {
	case MethodIdentity:
		return "Identity"
	case MethodNAK:
		return "NAK"
	case MethodMD5Challenge:
		return "MD5-Challenge"
	case MethodTLS:
		return "EAP-TLS"
	default:
		return fmt.Sprintf("MethodType(%d)", uint8(m))
	}
}

// Packet errors. Parse returns the first three; it accepts a Request or
// Response with no method-type byte, and ErrEmptyMethodBody is not
// returned by any function in this package.
var (
	ErrPacketTooShort   = errors.New("eap: total_length shorter than header")
	ErrLengthMismatch   = errors.New("eap: total_length does not match buffer length")
	ErrUnknownCode      = errors.New("eap: unknown code")
	ErrEmptyMethodBody  = errors.New("eap: request/response body missing method type byte")
)

// Packet is a parsed view over an EAP message. Body aliases the input
// buffer passed to Parse; it is not copied.
type Packet struct {
	Code       Code
	Identifier uint8
	// Body is the bytes following the 4-byte header. For Request/Response
	// this includes the leading method-type byte; for Success/Failure it
	// is always empty.
	Body []byte
}

// MethodType returns the method-type byte of a Request/Response packet and
// true, or (0, false) if the packet has no body (Success/Failure, or an
// empty Request/Response body).
func (p Packet) MethodType() (MethodType, bool) {
	if len(p.Body) == 0 {
		return 0, false
	}
	return MethodType(p.Body[0]), true
}

// MethodPayload returns the body bytes after the method-type byte.
func (p Packet) MethodPayload() []byte {
	if len(p.Body) == 0 {
		return nil
	}
	return p.Body[1:]
}

// Parse validates and parses an EAP packet from buf. Parsing is total: any
// input either yields a Packet or one of the sentinel errors above. buf is
// aliased by the returned Packet's Body field.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, ErrPacketTooShort
	}

	totalLength := binary.BigEndian.Uint16(buf[2:4])
	if int(totalLength) < HeaderSize {
		return Packet{}, ErrPacketTooShort
	}
	if int(totalLength) != len(buf) {
		return Packet{}, ErrLengthMismatch
	}

	code := Code(buf[0])
	switch code {
	case CodeRequest, CodeResponse, CodeSuccess, CodeFailure:
	default:
		return Packet{}, fmt.Errorf("%w: %d", ErrUnknownCode, buf[0])
	}

	return Packet{
		Code:       code,
		Identifier: buf[1],
		Body:       buf[HeaderSize:],
	}, nil
}
