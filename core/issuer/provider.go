package issuer

import (
	"fmt"

	"github.com/go-acme/lego/v4/challenge/tlsalpn01"
)

// alpnSolver satisfies lego's challenge.Provider for tls-alpn-01. Instead of
// binding its own listener the way lego's built-in provider does, it installs
// the challenge certificate into the table served by the challenge TLS
// configuration, so the validation probe is answered on the server's regular
// listening port.
type alpnSolver struct {
	state *State
}

// Present builds the self-signed challenge certificate carrying the
// acmeIdentifier extension for the key authorization and makes it available
// to the challenge configuration under the domain's SNI.
func (p *alpnSolver) Present(domain, token, keyAuth string) error {
	cert, err := tlsalpn01.ChallengeCert(domain, keyAuth)
	if err != nil {
		return fmt.Errorf("build tls-alpn-01 certificate for %s: %w", domain, err)
	}
	p.state.challenge.Store(domain, cert)
	return nil
}

// CleanUp removes the challenge certificate once validation finished.
func (p *alpnSolver) CleanUp(domain, token, keyAuth string) error {
	p.state.challenge.Delete(domain)
	return nil
}
