package acceptor

import (
	"log/slog"
	"time"
)

// DefaultHandshakeTimeout bounds peeking plus handshake completion for a
// single connection.
const DefaultHandshakeTimeout = 30 * time.Second

// Option configures acceptor behavior.
type Option func(*Acceptor)

// WithLogger sets a custom logger for acceptance events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Acceptor) {
		a.logger = logger
	}
}

// WithHandshakeTimeout overrides the per-connection handshake deadline.
// A zero duration disables the timeout.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(a *Acceptor) {
		a.timeout = timeout
	}
}
