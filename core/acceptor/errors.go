package acceptor

import "errors"

var (
	// Construction errors
	ErrNoChallengeConfig = errors.New("challenge TLS configuration is required")
	ErrNoDefaultConfig   = errors.New("default TLS configuration is required")

	// Handshake errors
	ErrHandshakeConsumed    = errors.New("handshake already completed")
	ErrNotClientHello       = errors.New("connection did not start with a TLS client hello")
	ErrRecordTooLarge       = errors.New("TLS record exceeds maximum length")
	ErrMalformedClientHello = errors.New("malformed client hello")

	// ErrListenerClosed is returned by Listener.Accept after Close.
	ErrListenerClosed = errors.New("listener closed")
)
