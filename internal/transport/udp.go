// Package transport binds the sans-I/O eap session core to real and
// in-memory packet transports.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrUnexpectedConnType indicates net.ListenConfig.ListenPacket returned a
// connection type other than *net.UDPConn.
var ErrUnexpectedConnType = errors.New("unexpected connection type from ListenPacket")

// Conn is the minimal packet-oriented transport seam the daemon drives:
// a byte source/sink keyed by peer address. Both the real UDP listener and
// the in-memory pipe transport implement it.
type Conn interface {
	ReadFrom(buf []byte) (n int, addr netip.AddrPort, err error)
	WriteTo(b []byte, addr netip.AddrPort) (int, error)
	Close() error
}

// UDPListener wraps a *net.UDPConn configured with the socket options a
// production EAP relay needs: SO_REUSEADDR so the daemon can restart
// without waiting out TIME_WAIT, and an explicit receive buffer size for
// bursty retransmit storms.
type UDPListener struct {
	conn *net.UDPConn
}

var _ Conn = (*UDPListener)(nil)

// ListenUDP creates a UDPListener bound to addr (host:port, or :port for
// all interfaces). recvBufBytes, if non-zero, sets SO_RCVBUF.
func ListenUDP(ctx context.Context, addr string, recvBufBytes int) (*UDPListener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setListenerOpts(c, recvBufBytes)
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		closeErr := pc.Close()
		return nil, errors.Join(
			fmt.Errorf("listen udp %s: %w", addr, ErrUnexpectedConnType),
			closeErr,
		)
	}

	return &UDPListener{conn: conn}, nil
}

// setListenerOpts applies SO_REUSEADDR and, if requested, SO_RCVBUF via the
// socket's raw Control callback.
func setListenerOpts(c syscall.RawConn, recvBufBytes int) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		//nolint:gosec // G115: fd uintptr->int is safe; kernel FDs are always small positive integers.
		intFD := int(fd)

		if sockErr = unix.SetsockoptInt(intFD, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
			sockErr = fmt.Errorf("set SO_REUSEADDR: %w", sockErr)
			return
		}

		if recvBufBytes > 0 {
			if sockErr = unix.SetsockoptInt(intFD, unix.SOL_SOCKET, unix.SO_RCVBUF, recvBufBytes); sockErr != nil {
				sockErr = fmt.Errorf("set SO_RCVBUF: %w", sockErr)
				return
			}
		}
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}

	return sockErr
}

// ReadFrom reads a single datagram into buf, returning the sender's address.
func (l *UDPListener) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	n, addr, err := l.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return 0, netip.AddrPort{}, fmt.Errorf("udp read: %w", err)
	}
	return n, addr, nil
}

// WriteTo sends b to addr.
func (l *UDPListener) WriteTo(b []byte, addr netip.AddrPort) (int, error) {
	n, err := l.conn.WriteToUDPAddrPort(b, addr)
	if err != nil {
		return n, fmt.Errorf("udp write: %w", err)
	}
	return n, nil
}

// LocalAddr returns the address the listener is bound to, useful for
// tests that bind to an ephemeral port.
func (l *UDPListener) LocalAddr() netip.AddrPort {
	return l.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Close closes the underlying socket.
func (l *UDPListener) Close() error {
	if err := l.conn.Close(); err != nil {
		return fmt.Errorf("close udp listener: %w", err)
	}
	return nil
}
