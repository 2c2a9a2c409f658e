package issuer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/tlsalpn01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"github.com/hashicorp/go-retryablehttp"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/acme/autocert"
)

const (
	// maxParsedCerts bounds the per-SNI cache of parsed certificates.
	maxParsedCerts = 64

	initialBackoff = 5 * time.Second
	maxBackoff     = 10 * time.Minute
)

// State drives certificate issuance and renewal in the background and owns
// the two server TLS configurations the acceptor completes handshakes with.
// Both configuration handles stay valid for the State's lifetime; the
// certificate material behind them is swapped atomically, never mutated in
// place, so in-flight handshakes always observe a consistent certificate.
type State struct {
	cfg        Config
	logger     *slog.Logger
	cache      autocert.Cache
	httpClient *http.Client

	challengeConfig *tls.Config
	defaultConfig   *tls.Config

	current   atomic.Pointer[tls.Certificate]
	parsed    *lru.Cache[string, *tls.Certificate]
	challenge sync.Map // domain -> *tls.Certificate

	events chan Event
}

// New creates the issuance state. Run must be started for certificates to be
// obtained or renewed; until then the default configuration serves whatever
// the cache already holds.
func New(cfg Config, opts ...Option) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	parsed, err := lru.New[string, *tls.Certificate](maxParsedCerts)
	if err != nil {
		return nil, fmt.Errorf("create certificate cache: %w", err)
	}

	s := &State{
		cfg:    cfg,
		parsed: parsed,
		events: make(chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cache == nil {
		s.cache = autocert.DirCache(cfg.CacheDir)
	}
	if s.httpClient == nil {
		rc := retryablehttp.NewClient()
		rc.Logger = nil
		s.httpClient = rc.StandardClient()
	}

	s.challengeConfig = &tls.Config{
		MinVersion:     tls.VersionTLS12,
		NextProtos:     []string{tlsalpn01.ACMETLS1Protocol},
		GetCertificate: s.getChallengeCertificate,
	}
	s.defaultConfig = baseTLSConfig()
	s.defaultConfig.GetCertificate = s.getCertificate

	return s, nil
}

// ChallengeConfig returns the server configuration that proves tls-alpn-01
// control. The handle is stable for the State's lifetime.
func (s *State) ChallengeConfig() *tls.Config { return s.challengeConfig }

// DefaultConfig returns the server configuration for ordinary traffic. The
// handle is stable for the State's lifetime even as certificates rotate.
func (s *State) DefaultConfig() *tls.Config { return s.defaultConfig }

// Events exposes the lifecycle event sequence. It must be drained by a
// background task for the State's lifetime; issuance pauses until each event
// is consumed.
func (s *State) Events() <-chan Event { return s.events }

// Run executes the issuance and renewal loop until ctx is cancelled. Cached
// certificates that are still outside the renewal window are installed
// without touching the network; the ACME client is only constructed once a
// certificate actually has to be obtained.
func (s *State) Run(ctx context.Context) error {
	var client *lego.Client
	backoff := initialBackoff
	announced := make(map[string]bool, len(s.cfg.Domains))

	for {
		failed := false
		for _, domain := range s.cfg.Domains {
			domain := strings.ToLower(domain)

			cached, err := s.loadCached(ctx, domain)
			if err == nil && time.Until(leafNotAfter(cached)) > s.cfg.RenewBefore {
				if !announced[domain] {
					announced[domain] = true
					s.install(domain, cached)
					s.logger.InfoContext(ctx, "certificate restored from cache",
						slog.String("domain", domain),
						slog.Time("not_after", leafNotAfter(cached)))
					if !s.emit(ctx, newEvent(EventLoaded, domain, leafNotAfter(cached), nil)) {
						return ctx.Err()
					}
				}
				continue
			}
			renewal := err == nil

			if client == nil {
				client, err = s.newClient(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed = true
					s.logger.ErrorContext(ctx, "acme client setup failed", slog.Any("error", err))
					if !s.emit(ctx, newEvent(EventFailed, domain, time.Time{}, err)) {
						return ctx.Err()
					}
					break
				}
			}

			event, err := s.obtain(ctx, client, domain, renewal)
			if err != nil {
				failed = true
				s.logger.ErrorContext(ctx, "certificate issuance failed",
					slog.String("domain", domain),
					slog.Any("error", err))
				event = newEvent(EventFailed, domain, time.Time{}, err)
			} else {
				announced[domain] = true
				s.logger.InfoContext(ctx, "certificate installed",
					slog.String("domain", domain),
					slog.String("event", string(event.Type)),
					slog.Time("not_after", event.NotAfter))
			}
			if !s.emit(ctx, event) {
				return ctx.Err()
			}
		}

		wait := s.cfg.CheckInterval
		if failed {
			wait = backoff
			backoff = min(backoff*2, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// newClient builds the lego client: account key from the cache (created on
// first run), registration against the configured directory, and this
// State's tls-alpn-01 solver.
func (s *State) newClient(ctx context.Context) (*lego.Client, error) {
	key, err := s.loadOrCreateAccountKey(ctx)
	if err != nil {
		return nil, err
	}
	user := &account{email: s.cfg.Email, key: key}

	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = s.cfg.directoryURL()
	legoCfg.HTTPClient = s.httpClient
	legoCfg.Certificate.KeyType = certcrypto.EC256

	client, err := lego.NewClient(legoCfg)
	if err != nil {
		return nil, fmt.Errorf("create acme client: %w", err)
	}

	// newAccount is idempotent for a stable key: an existing account is
	// simply returned.
	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("register acme account: %w", err)
	}
	user.registration = reg

	if err := client.Challenge.SetTLSALPN01Provider(&alpnSolver{state: s}); err != nil {
		return nil, fmt.Errorf("configure tls-alpn-01 solver: %w", err)
	}
	return client, nil
}

// obtain requests a certificate, persists it, and swaps it in.
func (s *State) obtain(ctx context.Context, client *lego.Client, domain string, renewal bool) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	res, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: []string{domain},
		Bundle:  true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("obtain certificate for %s: %w", domain, err)
	}

	combined := append(res.Certificate, res.PrivateKey...)
	if err := s.cache.Put(ctx, domain, combined); err != nil {
		return Event{}, fmt.Errorf("persist certificate for %s: %w", domain, err)
	}

	cert, err := parseCombined(combined)
	if err != nil {
		return Event{}, fmt.Errorf("parse obtained certificate for %s: %w", domain, err)
	}
	s.install(domain, cert)

	eventType := EventIssued
	if renewal {
		eventType = EventRenewed
	}
	return newEvent(eventType, domain, leafNotAfter(cert), nil), nil
}

// install atomically publishes a certificate for the domain.
func (s *State) install(domain string, cert *tls.Certificate) {
	s.parsed.Add(domain, cert)
	s.current.Store(cert)
}

// loadCached reads the combined PEM for a domain from the cache.
func (s *State) loadCached(ctx context.Context, domain string) (*tls.Certificate, error) {
	data, err := s.cache.Get(ctx, domain)
	if err != nil {
		return nil, err
	}
	return parseCombined(data)
}

// getCertificate serves the default-path handshake. Before the first
// successful issuance it fails, which surfaces to the client as a failed TLS
// handshake.
func (s *State) getCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	name := strings.ToLower(strings.TrimSuffix(hello.ServerName, "."))
	if name == "" {
		if cur := s.current.Load(); cur != nil {
			return cur, nil
		}
		return nil, ErrCertificateNotFound
	}

	if cert, ok := s.parsed.Get(name); ok {
		return cert, nil
	}

	// Cold path: the cache may hold a certificate from a previous run even
	// though the issuance loop has not visited this domain yet.
	ctx := hello.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cert, err := s.loadCached(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, name)
	}
	s.parsed.Add(name, cert)
	return cert, nil
}

// getChallengeCertificate serves tls-alpn-01 probes from the table the
// solver maintains during validation.
func (s *State) getChallengeCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	name := strings.ToLower(strings.TrimSuffix(hello.ServerName, "."))
	if v, ok := s.challenge.Load(name); ok {
		return v.(*tls.Certificate), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoChallengeCert, name)
}

func parseCombined(data []byte) (*tls.Certificate, error) {
	cert, err := tls.X509KeyPair(data, data)
	if err != nil {
		return nil, err
	}
	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, err
		}
		cert.Leaf = leaf
	}
	return &cert, nil
}

func leafNotAfter(cert *tls.Certificate) time.Time {
	if cert.Leaf == nil {
		return time.Time{}
	}
	return cert.Leaf.NotAfter
}
