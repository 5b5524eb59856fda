package eap_test

import (
	"testing"

	"github.com/dantte-lp/goeap/internal/eap"
)

// newMD5Pair builds a matched Authenticator/Peer session pair using
// MD5-Challenge, the simplest method that exercises a full two-packet
// conversation.
func newMD5Pair(t *testing.T, authPassword, peerPassword string) (*eap.AuthSession, *eap.PeerSession) {
	t.Helper()

	authEnv := eap.NewHeapEnvironment()
	peerEnv := eap.NewHeapEnvironment()

	authMux := eap.NewAuthMultiplexer(eap.NewMD5AuthMethod([]byte(authPassword)))
	peerMux := eap.NewPeerMultiplexer(eap.NewMD5PeerMethod([]byte(peerPassword)))

	return eap.NewAuthSession(authEnv, authMux), eap.NewPeerSession(peerEnv, peerMux)
}

// TestSessionMD5HappyPath drives a complete Authenticator/Peer MD5
// conversation to Success, verifying both sides reach StatusSuccess and
// that the framed Success packet's identifier is the Request's own
// identifier (the "same id as the last Request" rule, SPEC_FULL.md
// Section 8).
func TestSessionMD5HappyPath(t *testing.T) {
	t.Parallel()

	auth, peer := newMD5Pair(t, "secret", "secret")

	startResult := auth.Start()
	if startResult.Status != eap.StatusOk || startResult.Response == nil {
		t.Fatalf("auth.Start() = %+v", startResult)
	}
	requestID := startResult.Response[1]

	if err := peer.Start(); err.Status != eap.StatusOk {
		t.Fatalf("peer.Start() = %+v", err)
	}

	peerResult := peer.Receive(startResult.Response)
	if peerResult.Status != eap.StatusOk || peerResult.Response == nil {
		t.Fatalf("peer.Receive(request) = %+v", peerResult)
	}

	authResult := auth.Receive(peerResult.Response)
	if authResult.Status != eap.StatusSuccess || authResult.Response == nil {
		t.Fatalf("auth.Receive(response) = %+v", authResult)
	}
	if got := authResult.Response[1]; got != requestID {
		t.Fatalf("Success identifier = %d, want %d (the last Request's id)", got, requestID)
	}

	peerFinal := peer.Receive(authResult.Response)
	if peerFinal.Status != eap.StatusSuccess {
		t.Fatalf("peer.Receive(success) = %+v", peerFinal)
	}
}

// TestSessionMD5WrongPasswordFails verifies a failed digest check
// terminates both sides with StatusFailed and a framed Failure packet.
func TestSessionMD5WrongPasswordFails(t *testing.T) {
	t.Parallel()

	auth, peer := newMD5Pair(t, "secret", "wrong")

	startResult := auth.Start()
	_ = peer.Start()

	peerResult := peer.Receive(startResult.Response)
	authResult := auth.Receive(peerResult.Response)

	if authResult.Status != eap.StatusFailed {
		t.Fatalf("auth.Receive(bad response) = %+v, want StatusFailed", authResult)
	}
	if authResult.Reason != eap.FailInvalidMessage {
		t.Fatalf("auth failure reason = %v, want FailInvalidMessage", authResult.Reason)
	}

	peerFinal := peer.Receive(authResult.Response)
	if peerFinal.Status != eap.StatusFailed {
		t.Fatalf("peer.Receive(failure) = %+v, want StatusFailed", peerFinal)
	}
}

// TestAuthSessionTimeoutRetransmits verifies Timeout resends the exact
// same bytes as the original Request, and that exceeding
// MaxRetransmitCount fails the session.
func TestAuthSessionTimeoutRetransmits(t *testing.T) {
	t.Parallel()

	env := eap.NewHeapEnvironment(eap.WithMaxRetransmitCount(2))
	mux := eap.NewAuthMultiplexer(eap.NewMD5AuthMethod([]byte("secret")))
	auth := eap.NewAuthSession(env, mux)

	start := auth.Start()
	if start.Status != eap.StatusOk {
		t.Fatalf("Start() = %+v", start)
	}
	original := append([]byte(nil), start.Response...)

	first := auth.Timeout()
	if first.Status != eap.StatusOk || string(first.Response) != string(original) {
		t.Fatalf("first Timeout() = %+v, want a retransmit of % x", first, original)
	}

	second := auth.Timeout()
	if second.Status != eap.StatusFailed {
		t.Fatalf("second Timeout() = %+v, want StatusFailed after exceeding MaxRetransmitCount", second)
	}
	if second.Reason != eap.FailTimeout {
		t.Fatalf("failure reason = %v, want FailTimeout", second.Reason)
	}
}

// TestAuthSessionDropsUnexpectedIdentifier verifies a Response carrying
// an identifier other than the one just sent is silently counted as
// invalid rather than processed.
func TestAuthSessionDropsUnexpectedIdentifier(t *testing.T) {
	t.Parallel()

	env := eap.NewHeapEnvironment(eap.WithMaxInvalidMessageCount(2))
	mux := eap.NewAuthMultiplexer(eap.NewMD5AuthMethod([]byte("secret")))
	auth := eap.NewAuthSession(env, mux)

	start := auth.Start()
	wrongID := start.Response[1] + 1

	bogus := []byte{byte(eap.CodeResponse), wrongID, 0, 4}
	first := auth.Receive(bogus)
	if first.Status != eap.StatusOk {
		t.Fatalf("Receive(wrong id) #1 = %+v, want StatusOk (still counting)", first)
	}

	second := auth.Receive(bogus)
	if second.Status != eap.StatusFailed || second.Reason != eap.FailInvalidMessage {
		t.Fatalf("Receive(wrong id) #2 = %+v, want StatusFailed/FailInvalidMessage", second)
	}
}

// TestPeerSessionRetransmitsOnDuplicateIdentifier verifies that a
// duplicate Request (same identifier as the one just answered) causes the
// Peer to resend its last Response verbatim, and that Peer Timeout never
// does this on its own.
func TestPeerSessionRetransmitsOnDuplicateIdentifier(t *testing.T) {
	t.Parallel()

	authEnv := eap.NewHeapEnvironment()
	peerEnv := eap.NewHeapEnvironment()
	authMux := eap.NewAuthMultiplexer(eap.NewMD5AuthMethod([]byte("secret")))
	peerMux := eap.NewPeerMultiplexer(eap.NewMD5PeerMethod([]byte("secret")))

	auth := eap.NewAuthSession(authEnv, authMux)
	peer := eap.NewPeerSession(peerEnv, peerMux)

	start := auth.Start()
	_ = peer.Start()

	first := peer.Receive(start.Response)
	if first.Status != eap.StatusOk {
		t.Fatalf("peer.Receive(request) = %+v", first)
	}
	firstResponse := append([]byte(nil), first.Response...)

	duplicate := peer.Receive(start.Response)
	if duplicate.Status != eap.StatusOk || string(duplicate.Response) != string(firstResponse) {
		t.Fatalf("peer.Receive(duplicate request) = %+v, want a byte-identical retransmit of % x", duplicate, firstResponse)
	}

	timeoutResult := peer.Timeout()
	if timeoutResult.Status != eap.StatusOk || timeoutResult.Response != nil {
		t.Fatalf("peer.Timeout() = %+v, want StatusOk with no retransmit", timeoutResult)
	}
}

// TestPeerSessionTimeoutFailsAfterThreshold verifies the Peer's own timer
// only ever counts toward MaxTimeoutCount and eventually fails, never
// retransmitting on its own.
func TestPeerSessionTimeoutFailsAfterThreshold(t *testing.T) {
	t.Parallel()

	env := eap.NewHeapEnvironment(eap.WithMaxTimeoutCount(2))
	mux := eap.NewPeerMultiplexer(eap.NewMD5PeerMethod([]byte("secret")))
	peer := eap.NewPeerSession(env, mux)

	_ = peer.Start()

	first := peer.Timeout()
	if first.Status != eap.StatusOk {
		t.Fatalf("first Timeout() = %+v", first)
	}

	second := peer.Timeout()
	if second.Status != eap.StatusFailed || second.Reason != eap.FailTimeout {
		t.Fatalf("second Timeout() = %+v, want StatusFailed/FailTimeout", second)
	}
}
