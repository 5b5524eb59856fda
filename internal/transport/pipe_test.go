package transport_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/dantte-lp/goeap/internal/transport"
)

func TestPipeConnRoundTrip(t *testing.T) {
	t.Parallel()

	addrA := netip.MustParseAddrPort("10.0.0.1:1812")
	addrB := netip.MustParseAddrPort("10.0.0.2:1812")

	a, b := transport.NewPipe(addrA, addrB)
	defer a.Close()
	defer b.Close()

	payload := []byte{0x01, 0x02, 0x03}
	if _, err := a.WriteTo(payload, addrB); err != nil {
		t.Fatalf("a.WriteTo() error: %v", err)
	}

	buf := make([]byte, 16)
	n, from, err := b.ReadFrom(buf)
	if err != nil {
		t.Fatalf("b.ReadFrom() error: %v", err)
	}
	if string(buf[:n]) != string(payload) {
		t.Fatalf("b.ReadFrom() payload = % x, want % x", buf[:n], payload)
	}
	if from != addrA {
		t.Fatalf("b.ReadFrom() from = %v, want %v", from, addrA)
	}
}

func TestPipeConnReadAfterCloseFails(t *testing.T) {
	t.Parallel()

	addrA := netip.MustParseAddrPort("10.0.0.1:1812")
	addrB := netip.MustParseAddrPort("10.0.0.2:1812")

	a, b := transport.NewPipe(addrA, addrB)
	defer b.Close()

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	buf := make([]byte, 16)
	if _, _, err := a.ReadFrom(buf); !errors.Is(err, transport.ErrPipeClosed) {
		t.Fatalf("ReadFrom() after Close() error = %v, want %v", err, transport.ErrPipeClosed)
	}

	if _, err := a.WriteTo([]byte{0x00}, addrB); !errors.Is(err, transport.ErrPipeClosed) {
		t.Fatalf("WriteTo() after Close() error = %v, want %v", err, transport.ErrPipeClosed)
	}
}
