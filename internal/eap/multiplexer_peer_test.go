package eap_test

import (
	"testing"

	"github.com/dantte-lp/goeap/internal/eap"
)

// TestPeerMultiplexerNAKsUnconfiguredMethod verifies the Peer responds
// with a NAK listing its configured, NAK-selectable methods when asked
// for one it does not have.
func TestPeerMultiplexerNAKsUnconfiguredMethod(t *testing.T) {
	t.Parallel()

	env := eap.NewHeapEnvironment()
	mux := eap.NewPeerMultiplexer(eap.NewMD5PeerMethod([]byte("secret")))

	pkt := eap.Packet{Code: eap.CodeRequest, Identifier: 1, Body: []byte{byte(eap.MethodIdentity)}}
	out, err := mux.Recv(pkt, env)
	if err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
	if out.Kind != eap.OutputSend {
		t.Fatalf("Recv() Kind = %v, want OutputSend", out.Kind)
	}

	slice := out.Builder.Slice()
	if len(slice) < 2 || slice[0] != byte(eap.MethodNAK) || slice[1] != byte(eap.MethodMD5Challenge) {
		t.Fatalf("Recv() NAK body = % x, want [NAK, MD5-Challenge]", slice)
	}
}

// TestPeerMultiplexerRoutesToConfiguredMethod verifies a Request for a
// configured method is routed there and the method-id byte is restored on
// the Response.
func TestPeerMultiplexerRoutesToConfiguredMethod(t *testing.T) {
	t.Parallel()

	env := eap.NewHeapEnvironment()
	mux := eap.NewPeerMultiplexer(eap.NewIdentityPeerMethod([]byte("carol")))

	pkt := eap.Packet{Code: eap.CodeRequest, Identifier: 9, Body: []byte{byte(eap.MethodIdentity)}}
	out, err := mux.Recv(pkt, env)
	if err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
	if out.Kind != eap.OutputSend {
		t.Fatalf("Recv() Kind = %v, want OutputSend", out.Kind)
	}

	slice := out.Builder.Slice()
	if len(slice) == 0 || slice[0] != byte(eap.MethodIdentity) {
		t.Fatalf("Recv() response method-id byte = % x, want Identity", slice)
	}
	if got := string(slice[1:]); got != "carol" {
		t.Fatalf("Recv() response body = %q, want %q", got, "carol")
	}
}

// TestPeerMultiplexerCanSucceed verifies CanSucceed is ambivalent (nil)
// before any method has been selected, and delegates afterward.
func TestPeerMultiplexerCanSucceed(t *testing.T) {
	t.Parallel()

	env := eap.NewHeapEnvironment()
	mux := eap.NewPeerMultiplexer(eap.NewMD5PeerMethod([]byte("secret")))

	if got := mux.CanSucceed(); got != nil {
		t.Fatalf("CanSucceed() before selection = %v, want nil", got)
	}

	body := append([]byte{byte(eap.MethodMD5Challenge), 16}, make([]byte, 16)...)
	pkt := eap.Packet{Code: eap.CodeRequest, Identifier: 1, Body: body}
	if _, err := mux.Recv(pkt, env); err != nil {
		t.Fatalf("Recv() error: %v", err)
	}

	got := mux.CanSucceed()
	if got == nil || !*got {
		t.Fatalf("CanSucceed() after MD5-Challenge selection = %v, want true", got)
	}
}
