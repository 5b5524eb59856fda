package eap_test

import (
	"errors"
	"testing"

	"github.com/dantte-lp/goeap/internal/eap"
)

// TestMD5ChallengeRoundTrip drives a full Authenticator/Peer MD5-Challenge
// exchange end to end, with the Peer computing the correct digest.
func TestMD5ChallengeRoundTrip(t *testing.T) {
	t.Parallel()

	authEnv := eap.NewHeapEnvironment()
	peerEnv := eap.NewHeapEnvironment()

	authMethod := eap.NewMD5AuthMethod([]byte("secret"))
	peerMethod := eap.NewMD5PeerMethod([]byte("secret"))

	startOut, err := authMethod.Start(authEnv)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	challenge := append([]byte(nil), startOut.Builder.Slice()...)

	recvOut, err := peerMethod.Recv(challenge, eap.RecvMeta{Packet: eap.Packet{Identifier: 5}}, peerEnv)
	if err != nil {
		t.Fatalf("peer Recv() error: %v", err)
	}
	if recvOut.Kind != eap.OutputSend {
		t.Fatalf("peer Recv() Kind = %v, want OutputSend", recvOut.Kind)
	}
	response := append([]byte(nil), recvOut.Builder.Slice()...)

	finalOut, err := authMethod.Recv(response, eap.RecvMeta{Packet: eap.Packet{Identifier: 5}}, authEnv)
	if err != nil {
		t.Fatalf("auth Recv() error: %v", err)
	}
	if finalOut.Kind != eap.OutputFinished {
		t.Fatalf("auth Recv() Kind = %v, want OutputFinished", finalOut.Kind)
	}
}

// TestMD5ChallengeWrongPassword verifies a non-matching digest fails the
// conversation rather than finishing it.
func TestMD5ChallengeWrongPassword(t *testing.T) {
	t.Parallel()

	authEnv := eap.NewHeapEnvironment()
	peerEnv := eap.NewHeapEnvironment()

	authMethod := eap.NewMD5AuthMethod([]byte("secret"))
	peerMethod := eap.NewMD5PeerMethod([]byte("wrong"))

	startOut, _ := authMethod.Start(authEnv)
	challenge := append([]byte(nil), startOut.Builder.Slice()...)

	recvOut, _ := peerMethod.Recv(challenge, eap.RecvMeta{Packet: eap.Packet{Identifier: 1}}, peerEnv)
	response := append([]byte(nil), recvOut.Builder.Slice()...)

	finalOut, err := authMethod.Recv(response, eap.RecvMeta{Packet: eap.Packet{Identifier: 1}}, authEnv)
	if err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
	if finalOut.Kind != eap.OutputFailed {
		t.Fatalf("Recv() Kind = %v, want OutputFailed", finalOut.Kind)
	}
}

// TestMD5ChallengeSeventeenByteQuirk verifies the Authenticator accepts a
// response whose leading length byte disagrees with the trailing digest
// length, per the documented Open Question resolution: the length byte is
// ignored and only the trailing 16 bytes are compared.
func TestMD5ChallengeSeventeenByteQuirk(t *testing.T) {
	t.Parallel()

	authEnv := eap.NewHeapEnvironment()
	peerEnv := eap.NewHeapEnvironment()

	authMethod := eap.NewMD5AuthMethod([]byte("secret"))
	peerMethod := eap.NewMD5PeerMethod([]byte("secret"))

	startOut, _ := authMethod.Start(authEnv)
	challenge := append([]byte(nil), startOut.Builder.Slice()...)

	recvOut, _ := peerMethod.Recv(challenge, eap.RecvMeta{Packet: eap.Packet{Identifier: 3}}, peerEnv)
	response := append([]byte(nil), recvOut.Builder.Slice()...)

	// Corrupt the length byte (response[0]) to a bogus value; the trailing
	// digest bytes are untouched.
	response[0] = 0xFF

	finalOut, err := authMethod.Recv(response, eap.RecvMeta{Packet: eap.Packet{Identifier: 3}}, authEnv)
	if err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
	if finalOut.Kind != eap.OutputFinished {
		t.Fatalf("Recv() Kind = %v with a corrupted length byte, want OutputFinished", finalOut.Kind)
	}
}

// TestMD5PeerBadRequestLength verifies the Peer rejects a Request body
// that isn't exactly 17 bytes (length byte + 16-byte challenge).
func TestMD5PeerBadRequestLength(t *testing.T) {
	t.Parallel()

	env := eap.NewHeapEnvironment()
	m := eap.NewMD5PeerMethod([]byte("secret"))

	_, err := m.Recv([]byte{16, 1, 2, 3}, eap.RecvMeta{Packet: eap.Packet{Identifier: 1}}, env)
	if !errors.Is(err, eap.ErrMD5BadResponseLength) {
		t.Fatalf("Recv() error = %v, want %v", err, eap.ErrMD5BadResponseLength)
	}
}
