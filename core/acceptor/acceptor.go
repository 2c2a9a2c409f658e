package acceptor

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"
)

// Acceptor is the connection-acceptance multiplexer. It inspects each
// inbound connection's ClientHello and completes the handshake with either
// the challenge configuration (ACME tls-alpn-01 validation probes) or the
// default configuration (ordinary clients), returning a unified Transport
// either way.
//
// The two configuration handles are shared with the background issuance
// driver, which may swap the certificate material they serve at any time;
// the Acceptor only ever reads them.
type Acceptor struct {
	challengeConfig *tls.Config
	defaultConfig   *tls.Config
	timeout         time.Duration
	logger          *slog.Logger
}

// New creates an Acceptor from the two server configuration handles obtained
// from the issuance driver.
func New(challengeConfig, defaultConfig *tls.Config, opts ...Option) (*Acceptor, error) {
	if challengeConfig == nil {
		return nil, ErrNoChallengeConfig
	}
	if defaultConfig == nil {
		return nil, ErrNoDefaultConfig
	}

	a := &Acceptor{
		challengeConfig: challengeConfig,
		defaultConfig:   defaultConfig,
		timeout:         DefaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Accept classifies and completes the TLS handshake on a raw connection.
//
// For a tls-alpn-01 challenge probe the completed stream is shut down
// immediately and a closed Transport is returned; responding with the
// challenge certificate and then closing is the protocol action that proves
// control of the domain. For a normal client a live Transport wrapping the
// encrypted stream is returned.
//
// Any I/O error during peeking, classification, or completion fails the whole
// acceptance attempt; the caller is expected to drop the connection. No
// retries happen at this layer.
func (a *Acceptor) Accept(ctx context.Context, conn net.Conn) (*Transport, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	handshake, err := Begin(ctx, conn)
	if err != nil {
		return nil, err
	}

	if handshake.Hello().IsChallenge() {
		tlsConn, err := handshake.Complete(ctx, a.challengeConfig)
		if err != nil {
			return nil, err
		}
		if err := tlsConn.Close(); err != nil {
			return nil, err
		}
		a.logger.DebugContext(ctx, "answered tls-alpn-01 challenge probe",
			slog.String("server_name", handshake.Hello().ServerName))
		return NewClosedTransport(), nil
	}

	tlsConn, err := handshake.Complete(ctx, a.defaultConfig)
	if err != nil {
		return nil, err
	}
	return NewLiveTransport(tlsConn, conn), nil
}
