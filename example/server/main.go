// Command server is a minimal HTTPS server with automatic certificates.
// Configuration comes from the environment (see issuer.Config); an .env file
// is loaded when present.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrymomot/acmetls"
	"github.com/dmitrymomot/acmetls/core/acceptor"
	"github.com/dmitrymomot/acmetls/core/issuer"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := issuer.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, state, err := acmetls.New(cfg, issuer.WithLogger(logger))
	if err != nil {
		logger.Error("setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		if err := state.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("issuance loop stopped", slog.Any("error", err))
		}
	}()
	go acmetls.LogEvents(ctx, state, logger)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":443"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("listen failed", slog.String("addr", addr), slog.Any("error", err))
		os.Exit(1)
	}

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("Hello TLS!"))
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving", slog.String("addr", addr))
	if err := srv.Serve(acceptor.NewListener(ln, a)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
