package acceptor

import (
	"context"
	"log/slog"
	"net"
	"sync"
)

// Listener adapts an Acceptor to the net.Listener contract so it can be
// handed to http.Server.Serve (or any other listener consumer) in place of a
// plain TLS listener.
//
// Each raw connection's classification and handshake runs in its own
// goroutine; connections are independent and may complete out of order.
// Handshake failures are logged and the failed connection dropped without
// disturbing the accept loop; retry timing is the probing client's concern.
type Listener struct {
	inner    net.Listener
	acceptor *Acceptor
	logger   *slog.Logger

	conns  chan *Transport
	errs   chan error
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewListener wraps inner so that every accepted connection goes through the
// acceptor. Closing the returned listener closes inner and stops all pending
// handshakes.
func NewListener(inner net.Listener, a *Acceptor) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		inner:    inner,
		acceptor: a,
		logger:   a.logger,
		conns:    make(chan *Transport),
		errs:     make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	go l.acceptLoop()
	return l
}

func (l *Listener) acceptLoop() {
	for {
		raw, err := l.inner.Accept()
		if err != nil {
			select {
			case l.errs <- err:
			default:
			}
			l.cancel()
			return
		}
		go l.handshake(raw)
	}
}

func (l *Listener) handshake(raw net.Conn) {
	transport, err := l.acceptor.Accept(l.ctx, raw)
	if err != nil {
		l.logger.Debug("tls acceptance failed",
			slog.String("remote_addr", raw.RemoteAddr().String()),
			slog.Any("error", err))
		raw.Close()
		return
	}
	select {
	case l.conns <- transport:
	case <-l.ctx.Done():
		transport.Close()
		raw.Close()
	}
}

// Accept returns the next completed transport. Challenge probes surface as
// closed transports, indistinguishable upstream from clients that hung up
// right after connecting.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case err := <-l.errs:
		return nil, err
	case <-l.ctx.Done():
		select {
		case err := <-l.errs:
			return nil, err
		default:
			return nil, ErrListenerClosed
		}
	}
}

// Addr returns the address of the wrapped listener.
func (l *Listener) Addr() net.Addr {
	return l.inner.Addr()
}

// Close stops the accept loop and closes the wrapped listener.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		l.cancel()
		err = l.inner.Close()
	})
	return err
}
