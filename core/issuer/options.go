package issuer

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// Option configures the issuance state during initialization.
type Option func(*State)

// WithLogger sets a custom logger for issuance events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *State) {
		s.logger = logger
	}
}

// WithCache replaces the filesystem-backed certificate cache. Useful for
// testing or for custom persistence backends implementing autocert.Cache.
func WithCache(cache autocert.Cache) Option {
	return func(s *State) {
		s.cache = cache
	}
}

// WithHTTPClient overrides the HTTP client used for ACME directory
// transactions. The default retries transient failures automatically.
func WithHTTPClient(client *http.Client) Option {
	return func(s *State) {
		s.httpClient = client
	}
}

// WithDirectoryURL points the driver at a specific ACME directory, taking
// precedence over the Production flag.
func WithDirectoryURL(url string) Option {
	return func(s *State) {
		s.cfg.DirectoryURL = url
	}
}

// WithRenewBefore overrides how long before expiry certificates are renewed.
func WithRenewBefore(d time.Duration) Option {
	return func(s *State) {
		if d > 0 {
			s.cfg.RenewBefore = d
		}
	}
}
