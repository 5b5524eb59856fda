package daemon_test

import (
	"io"
	"log/slog"
	"net/netip"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dantte-lp/goeap/internal/daemon"
	"github.com/dantte-lp/goeap/internal/eap"
	"github.com/dantte-lp/goeap/internal/metrics"
	"github.com/dantte-lp/goeap/internal/transport"
)

func newTestManager(t *testing.T, conn transport.Conn) *daemon.Manager {
	t.Helper()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	newMux := func() *eap.AuthMultiplexer {
		return eap.NewAuthMultiplexer(eap.NewMD5AuthMethod([]byte("shared-secret")))
	}
	return daemon.NewManager(conn, newMux, collector, log)
}

func TestManagerStartSessionSendsOpeningRequest(t *testing.T) {
	t.Parallel()

	local, remote := mustAddrPorts(t)
	authConn, peerConn := transport.NewPipe(local, remote)
	t.Cleanup(func() { _ = authConn.Close(); _ = peerConn.Close() })

	mgr := newTestManager(t, authConn)

	id, err := mgr.StartSession(remote)
	if err != nil {
		t.Fatalf("StartSession() error: %v", err)
	}
	if id.String() == "" {
		t.Fatal("StartSession() returned a zero-value UUID")
	}

	buf := make([]byte, 2048)
	n, from, err := peerConn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom() error: %v", err)
	}
	if from != local {
		t.Errorf("ReadFrom() from = %v, want %v", from, local)
	}
	if n == 0 {
		t.Fatal("ReadFrom() read zero bytes for the opening request")
	}

	snaps := mgr.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("Snapshot() returned %d entries, want 1", len(snaps))
	}
	if snaps[0].ID != id {
		t.Errorf("Snapshot()[0].ID = %v, want %v", snaps[0].ID, id)
	}
	if snaps[0].Outcome != nil {
		t.Errorf("Snapshot()[0].Outcome = %+v, want nil (still in progress)", snaps[0].Outcome)
	}
}

func TestManagerStartSessionRejectsDuplicateAddr(t *testing.T) {
	t.Parallel()

	local, remote := mustAddrPorts(t)
	authConn, peerConn := transport.NewPipe(local, remote)
	t.Cleanup(func() { _ = authConn.Close(); _ = peerConn.Close() })

	mgr := newTestManager(t, authConn)

	if _, err := mgr.StartSession(remote); err != nil {
		t.Fatalf("first StartSession() error: %v", err)
	}
	if _, err := mgr.StartSession(remote); err != daemon.ErrSessionExists {
		t.Fatalf("second StartSession() error = %v, want %v", err, daemon.ErrSessionExists)
	}
}

func TestManagerDropsInboundFromUnknownPeer(t *testing.T) {
	t.Parallel()

	local, remote := mustAddrPorts(t)
	authConn, _ := transport.NewPipe(local, remote)
	t.Cleanup(func() { _ = authConn.Close() })

	mgr := newTestManager(t, authConn)

	// No session started for remote: HandleInbound must not panic, and
	// must leave the session table empty.
	mgr.HandleInbound(remote, []byte{0xFF})

	if snaps := mgr.Snapshot(); len(snaps) != 0 {
		t.Fatalf("Snapshot() returned %d entries, want 0", len(snaps))
	}
}

func TestManagerFullMD5ExchangeReachesSuccess(t *testing.T) {
	t.Parallel()

	password := []byte("shared-secret")
	local, remote := mustAddrPorts(t)
	authConn, peerConn := transport.NewPipe(local, remote)
	t.Cleanup(func() { _ = authConn.Close(); _ = peerConn.Close() })

	mgr := newTestManager(t, authConn)
	if _, err := mgr.StartSession(remote); err != nil {
		t.Fatalf("StartSession() error: %v", err)
	}

	peerEnv := eap.NewHeapEnvironment()
	peer := eap.NewPeerSession(peerEnv, eap.NewPeerMultiplexer(eap.NewMD5PeerMethod(password)))

	buf := make([]byte, 2048)
	for round := 0; round < 8; round++ {
		n, _, err := peerConn.ReadFrom(buf)
		if err != nil {
			t.Fatalf("round %d: ReadFrom() error: %v", round, err)
		}

		peerResult := peer.Receive(append([]byte(nil), buf[:n]...))
		if peerResult.Status == eap.StatusInternalError {
			t.Fatalf("round %d: peer.Receive() internal error: %v", round, peerResult.Err)
		}

		if peerResult.Response != nil {
			if _, err := peerConn.WriteTo(peerResult.Response, local); err != nil {
				t.Fatalf("round %d: peerConn.WriteTo() error: %v", round, err)
			}
			mgr.HandleInbound(remote, peerResult.Response)
		}

		if peerResult.Status == eap.StatusSuccess {
			break
		}
	}

	snaps := mgr.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("Snapshot() returned %d entries, want 1", len(snaps))
	}
	if snaps[0].Outcome == nil || !snaps[0].Outcome.Success {
		t.Fatalf("Snapshot()[0].Outcome = %+v, want a successful outcome", snaps[0].Outcome)
	}
	if snaps[0].Method != "MD5-Challenge" {
		t.Errorf("Snapshot()[0].Method = %q, want %q", snaps[0].Method, "MD5-Challenge")
	}
}

func TestManagerSweepReapsIdleSessions(t *testing.T) {
	t.Parallel()

	local, remote := mustAddrPorts(t)
	authConn, peerConn := transport.NewPipe(local, remote)
	t.Cleanup(func() { _ = authConn.Close(); _ = peerConn.Close() })

	mgr := newTestManager(t, authConn)
	if _, err := mgr.StartSession(remote); err != nil {
		t.Fatalf("StartSession() error: %v", err)
	}

	// Default retransmit budget is 4; sweeping that many times with
	// nothing ever arriving must fail and then reap the session.
	for i := 0; i < 4; i++ {
		mgr.Sweep(0)
	}
	// One more sweep should now reap the terminal entry (an idle timeout
	// of 0 puts the cutoff at the current time, which every earlier
	// lastActive falls before).
	mgr.Sweep(0)

	if snaps := mgr.Snapshot(); len(snaps) != 0 {
		t.Fatalf("Snapshot() after reap returned %d entries, want 0", len(snaps))
	}
}

func mustAddrPorts(t *testing.T) (local, remote netip.AddrPort) {
	t.Helper()
	local = netip.MustParseAddrPort("127.0.0.1:3799")
	remote = netip.MustParseAddrPort("127.0.0.1:44321")
	return local, remote
}
