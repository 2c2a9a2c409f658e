package issuer

import "errors"

var (
	// ErrNoDomains is returned when the configuration names no domains.
	ErrNoDomains = errors.New("at least one domain is required")

	// ErrCertificateNotFound is returned to the TLS stack when no certificate
	// has been issued yet for the requested server name. The handshake fails;
	// clients connecting before the first successful issuance see a TLS error.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrNoChallengeCert is returned when a tls-alpn-01 probe arrives for a
	// domain with no pending challenge.
	ErrNoChallengeCert = errors.New("no pending tls-alpn-01 challenge for server name")

	// ErrAccountKey wraps failures to load, parse, or persist the ACME
	// account private key.
	ErrAccountKey = errors.New("acme account key")
)
