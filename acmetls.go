// Package acmetls serves HTTPS with automatically provisioned certificates,
// answering ACME tls-alpn-01 challenges on the same port as application
// traffic.
//
// New wires the two halves together: the issuance driver (core/issuer) that
// obtains and renews certificates in the background, and the acceptor
// (core/acceptor) that multiplexes validation probes and real clients during
// the TLS handshake.
//
//	cfg := issuer.Config{
//		Domains:  []string{"domain.example"},
//		Email:    "admin@example.org",
//		CacheDir: "/srv/example/acme-cache-dir",
//	}
//
//	a, state, err := acmetls.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	go state.Run(ctx)
//	go acmetls.LogEvents(ctx, state, slog.Default())
//
//	ln, err := net.Listen("tcp", ":443")
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv := &http.Server{Handler: handler}
//	srv.Serve(acceptor.NewListener(ln, a))
//
// Both background tasks must be cancelled together with the server,
// typically through a shared context.
package acmetls

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/acmetls/core/acceptor"
	"github.com/dmitrymomot/acmetls/core/issuer"
)

// New builds the issuance state for cfg and an acceptor bound to its two
// configuration handles. The caller owns both background tasks: state.Run
// and an event pump such as LogEvents.
func New(cfg issuer.Config, opts ...issuer.Option) (*acceptor.Acceptor, *issuer.State, error) {
	state, err := issuer.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	a, err := acceptor.New(state.ChallengeConfig(), state.DefaultConfig())
	if err != nil {
		return nil, nil, err
	}
	return a, state, nil
}

// LogEvents drains the state's lifecycle events into the logger until ctx is
// cancelled. It is the canonical pump for hosts that only want the events
// observed.
func LogEvents(ctx context.Context, state *issuer.State, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-state.Events():
			if ev.Type == issuer.EventFailed {
				logger.ErrorContext(ctx, "acme event",
					slog.String("type", string(ev.Type)),
					slog.String("domain", ev.Domain),
					slog.Any("error", ev.Err))
				continue
			}
			logger.InfoContext(ctx, "acme event",
				slog.String("type", string(ev.Type)),
				slog.String("domain", ev.Domain),
				slog.Time("not_after", ev.NotAfter))
		}
	}
}
