package transport

import (
	"errors"
	"fmt"
	"net/netip"
)

// ErrPipeClosed indicates an operation was attempted on a closed PipeConn.
var ErrPipeClosed = errors.New("transport: pipe closed")

type pipeDatagram struct {
	data []byte
	from netip.AddrPort
}

// PipeConn is an in-memory, packet-oriented Conn used to wire an
// Authenticator and a Peer session together directly in tests, without a
// real socket. Two PipeConns created by NewPipe forward datagrams to each
// other over buffered channels; no background goroutine is needed since
// the channel itself provides the queue.
type PipeConn struct {
	self   netip.AddrPort
	send   chan<- pipeDatagram
	recv   <-chan pipeDatagram
	closed chan struct{}
}

var _ Conn = (*PipeConn)(nil)

// NewPipe returns two connected PipeConns: writes on one are readable from
// the other, each tagged with the writer's configured address.
func NewPipe(addrA, addrB netip.AddrPort) (a, b *PipeConn) {
	const queueDepth = 64
	aToB := make(chan pipeDatagram, queueDepth)
	bToA := make(chan pipeDatagram, queueDepth)

	a = &PipeConn{self: addrA, send: aToB, recv: bToA, closed: make(chan struct{})}
	b = &PipeConn{self: addrB, send: bToA, recv: aToB, closed: make(chan struct{})}
	return a, b
}

// WriteTo ignores addr (a PipeConn has exactly one peer) and enqueues b,
// tagged with this end's own address, for the other end's ReadFrom.
func (p *PipeConn) WriteTo(b []byte, _ netip.AddrPort) (int, error) {
	select {
	case <-p.closed:
		return 0, ErrPipeClosed
	default:
	}
	cp := append([]byte(nil), b...)
	select {
	case p.send <- pipeDatagram{data: cp, from: p.self}:
		return len(b), nil
	case <-p.closed:
		return 0, ErrPipeClosed
	}
}

// ReadFrom blocks until a datagram arrives or the pipe is closed.
func (p *PipeConn) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	select {
	case dg, ok := <-p.recv:
		if !ok {
			return 0, netip.AddrPort{}, fmt.Errorf("pipe read: %w", ErrPipeClosed)
		}
		n := copy(buf, dg.data)
		return n, dg.from, nil
	case <-p.closed:
		return 0, netip.AddrPort{}, fmt.Errorf("pipe read: %w", ErrPipeClosed)
	}
}

// Close marks this end closed, so that its own later WriteTo calls return
// ErrPipeClosed. The other end is not notified: its writes keep queuing
// until the channel buffer is full, and datagrams this end already sent
// remain readable by it until drained.
func (p *PipeConn) Close() error {
	select {
	case <-p.closed:
		return nil
	default:
		close(p.closed)
	}
	return nil
}
