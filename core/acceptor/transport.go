package acceptor

import (
	"crypto/tls"
	"io"
	"net"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Transport is the unified byte stream handed to the hosting server. It is
// either live (wrapping the encrypted stream of a completed default-path
// handshake) or closed (a challenge probe that was answered and shut down).
//
// The closed state behaves like a client that connected and immediately
// disconnected: reads report end of stream, writes are discarded
// successfully, and socket controls are harmless no-ops. That lets a generic
// accept/serve loop handle both paths without special cases.
type Transport struct {
	tls *tls.Conn
	raw net.Conn
}

// NewClosedTransport returns the closed variant.
func NewClosedTransport() *Transport {
	return &Transport{}
}

// NewLiveTransport wraps a completed TLS stream. raw is the original
// connection beneath the TLS layer, used for socket-level controls.
func NewLiveTransport(conn *tls.Conn, raw net.Conn) *Transport {
	return &Transport{tls: conn, raw: raw}
}

// IsClosed reports whether the transport is the closed (challenge-path)
// variant.
func (t *Transport) IsClosed() bool { return t.tls == nil }

func (t *Transport) Read(p []byte) (int, error) {
	if t.tls == nil {
		return 0, io.EOF
	}
	return t.tls.Read(p)
}

// Write forwards to the encrypted stream. On the closed variant the buffer is
// discarded and reported fully written, the same convention io.Discard uses
// for harmless sinks.
func (t *Transport) Write(p []byte) (int, error) {
	if t.tls == nil {
		return len(p), nil
	}
	return t.tls.Write(p)
}

func (t *Transport) Close() error {
	if t.tls == nil {
		return nil
	}
	return t.tls.Close()
}

func (t *Transport) LocalAddr() net.Addr {
	if t.tls == nil {
		return nil
	}
	return t.tls.LocalAddr()
}

// RemoteAddr returns the peer address, or nil on the closed variant.
func (t *Transport) RemoteAddr() net.Addr {
	if t.tls == nil {
		return nil
	}
	return t.tls.RemoteAddr()
}

func (t *Transport) SetDeadline(d time.Time) error {
	if t.tls == nil {
		return nil
	}
	return t.tls.SetDeadline(d)
}

func (t *Transport) SetReadDeadline(d time.Time) error {
	if t.tls == nil {
		return nil
	}
	return t.tls.SetReadDeadline(d)
}

func (t *Transport) SetWriteDeadline(d time.Time) error {
	if t.tls == nil {
		return nil
	}
	return t.tls.SetWriteDeadline(d)
}

// ConnectionState returns the TLS connection state of a live transport. The
// second return value is false on the closed variant.
func (t *Transport) ConnectionState() (tls.ConnectionState, bool) {
	if t.tls == nil {
		return tls.ConnectionState{}, false
	}
	return t.tls.ConnectionState(), true
}

// SetNoDelay toggles Nagle's algorithm on the raw socket beneath the TLS
// layer. It is a successful no-op on the closed variant and on raw
// connections that are not TCP.
func (t *Transport) SetNoDelay(noDelay bool) error {
	if tc, ok := t.tcpConn(); ok {
		return tc.SetNoDelay(noDelay)
	}
	return nil
}

// SetLinger configures close-linger behavior on the raw socket, with the
// semantics of net.TCPConn.SetLinger. No-op when there is no TCP socket.
func (t *Transport) SetLinger(sec int) error {
	if tc, ok := t.tcpConn(); ok {
		return tc.SetLinger(sec)
	}
	return nil
}

// SetIPTTL sets the IP time-to-live (hop limit for IPv6) on the raw socket.
// No-op when there is no TCP socket.
func (t *Transport) SetIPTTL(ttl int) error {
	tc, ok := t.tcpConn()
	if !ok {
		return nil
	}
	if addr, ok := tc.LocalAddr().(*net.TCPAddr); ok && addr.IP.To4() == nil {
		return ipv6.NewConn(tc).SetHopLimit(ttl)
	}
	return ipv4.NewConn(tc).SetTTL(ttl)
}

func (t *Transport) tcpConn() (*net.TCPConn, bool) {
	if t.raw == nil {
		return nil, false
	}
	tc, ok := t.raw.(*net.TCPConn)
	return tc, ok
}
