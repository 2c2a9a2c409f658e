package acceptor

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"
)

// Handshake is a one-shot token representing "ClientHello received, handshake
// not yet completed". Begin produces it, Complete consumes it; completing
// twice is an error, so classification always precedes completion and
// completion happens at most once per connection.
type Handshake struct {
	hello    *ClientHello
	conn     net.Conn
	consumed bool
}

// Begin reads far enough into the TLS handshake to observe the ClientHello
// without consuming it from crypto/tls's point of view. The context deadline,
// if any, bounds the read.
func Begin(ctx context.Context, conn net.Conn) (*Handshake, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err == nil {
			defer conn.SetReadDeadline(time.Time{})
		}
	}

	hello, recorded, err := peekClientHello(conn)
	if err != nil {
		return nil, fmt.Errorf("peek client hello: %w", err)
	}
	return &Handshake{
		hello: hello,
		conn:  &preludeConn{Conn: conn, r: io.MultiReader(bytes.NewReader(recorded), conn)},
	}, nil
}

// Hello returns the ClientHello snapshot observed by Begin.
func (h *Handshake) Hello() *ClientHello {
	return h.hello
}

// Complete finishes the TLS handshake with the given server configuration and
// returns the encrypted stream. It consumes the token: a second call returns
// ErrHandshakeConsumed regardless of the first call's outcome.
func (h *Handshake) Complete(ctx context.Context, config *tls.Config) (*tls.Conn, error) {
	if h.consumed {
		return nil, ErrHandshakeConsumed
	}
	h.consumed = true

	tlsConn := tls.Server(h.conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("complete handshake: %w", err)
	}
	return tlsConn, nil
}

// preludeConn replays the bytes recorded during peeking before reading from
// the underlying connection, so the completed handshake observes an untouched
// stream. All other methods delegate to the wrapped connection.
type preludeConn struct {
	net.Conn
	r io.Reader
}

func (pc *preludeConn) Read(p []byte) (int, error) { return pc.r.Read(p) }
