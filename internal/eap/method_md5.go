package eap

import (
	"crypto/md5" //nolint:gosec // G501: MD5 required by RFC 1994 Section 4.1
	"crypto/subtle"
	"errors"
)

// md5ChallengeLen is the length of the MD5-Challenge challenge/response
// digest, RFC 1994 Section 4.1.
const md5ChallengeLen = 16

// ErrMD5BadResponseLength is returned by the Peer-side method when a
// Request's body is not exactly [value-size, challenge(16)] long.
var ErrMD5BadResponseLength = errors.New("eap: md5-challenge request has wrong body length")

// md5AuthMethod implements the Authenticator side of EAP MD5-Challenge
// (RFC 1994 Section 4.1).
type md5AuthMethod struct {
	password  []byte
	extra     []byte // optional per-session extra hashed after the challenge
	challenge [md5ChallengeLen]byte
}

// NewMD5AuthMethod returns the Authenticator-side MD5-Challenge method,
// verifying responses against password.
func NewMD5AuthMethod(password []byte) AuthMethod {
	return &md5AuthMethod{password: password}
}

func (*md5AuthMethod) MethodID() MethodType  { return MethodMD5Challenge }
func (*md5AuthMethod) SelectableByNAK() bool { return true }

func (m *md5AuthMethod) Start(env Environment) (Output, error) {
	env.FillRandom(m.challenge[:])

	body := make([]byte, 0, 1+md5ChallengeLen)
	body = append(body, byte(md5ChallengeLen))
	body = append(body, m.challenge[:]...)

	return SendOutput(Respond(env).Write(body)), nil
}

// Recv computes md5(identifier || password || challenge || extra) and
// compares it, in constant time, against the trailing 16 bytes of the
// response body. Per SPEC_FULL.md Section 9, the leading length byte is
// ignored — some deployed peers send 17 there instead of the RFC-mandated
// 16, and this implementation accepts both.
func (m *md5AuthMethod) Recv(payload []byte, meta RecvMeta, _ Environment) (Output, error) {
	if len(payload) < md5ChallengeLen {
		return FailedOutput(), nil
	}
	got := payload[len(payload)-md5ChallengeLen:]

	want := computeMD5Digest(meta.Packet.Identifier, m.password, m.challenge[:], m.extra)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return FailedOutput(), nil
	}
	return FinishedOutput(), nil
}

// md5PeerMethod implements the Peer side of EAP MD5-Challenge.
type md5PeerMethod struct {
	password []byte
	extra    []byte
}

// NewMD5PeerMethod returns the Peer-side MD5-Challenge method, answering
// challenges with password.
func NewMD5PeerMethod(password []byte) PeerMethod {
	return &md5PeerMethod{password: password}
}

func (*md5PeerMethod) MethodID() MethodType  { return MethodMD5Challenge }
func (*md5PeerMethod) SelectableByNAK() bool { return true }
func (*md5PeerMethod) CanSucceed() *bool      { return boolPtr(true) }

func (m *md5PeerMethod) Recv(payload []byte, meta RecvMeta, env Environment) (Output, error) {
	if len(payload) != 1+md5ChallengeLen {
		return Output{}, ErrMD5BadResponseLength
	}
	challenge := payload[1 : 1+md5ChallengeLen]
	digest := computeMD5Digest(meta.Packet.Identifier, m.password, challenge, m.extra)

	body := make([]byte, 0, 1+md5ChallengeLen)
	body = append(body, byte(md5ChallengeLen))
	body = append(body, digest...)

	return SendOutput(Respond(env).Write(body)), nil
}

func computeMD5Digest(identifier uint8, password, challenge, extra []byte) []byte {
	h := md5.New() //nolint:gosec // G401: MD5 required by RFC 1994 Section 4.1
	h.Write([]byte{identifier})
	h.Write(password)
	h.Write(challenge)
	h.Write(extra)
	return h.Sum(nil)
}
