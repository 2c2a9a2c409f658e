package issuer

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/go-acme/lego/v4/registration"
	"golang.org/x/crypto/acme/autocert"
)

// accountKeyCacheKey is the cache key for the ACME account private key. The
// "+" marker matches autocert's naming so the key never collides with a
// domain certificate entry.
const accountKeyCacheKey = "acme_account+key"

// account implements registration.User for the lego client.
type account struct {
	email        string
	key          crypto.PrivateKey
	registration *registration.Resource
}

func (a *account) GetEmail() string                        { return a.email }
func (a *account) GetRegistration() *registration.Resource { return a.registration }
func (a *account) GetPrivateKey() crypto.PrivateKey        { return a.key }

// loadOrCreateAccountKey restores the ACME account key from the cache, or
// generates and persists a fresh ECDSA P-256 key on first run. Reusing the
// key keeps the same ACME account (and its rate-limit standing) across
// restarts.
func (s *State) loadOrCreateAccountKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	data, err := s.cache.Get(ctx, accountKeyCacheKey)
	switch {
	case err == nil:
		block, _ := pem.Decode(data)
		if block == nil || block.Type != "EC PRIVATE KEY" {
			return nil, fmt.Errorf("%w: cached entry %q is not an EC private key", ErrAccountKey, accountKeyCacheKey)
		}
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse cached key: %w", ErrAccountKey, err)
		}
		return key, nil

	case errors.Is(err, autocert.ErrCacheMiss):
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("%w: generate: %w", ErrAccountKey, err)
		}
		der, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: encode: %w", ErrAccountKey, err)
		}
		data := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
		if err := s.cache.Put(ctx, accountKeyCacheKey, data); err != nil {
			return nil, fmt.Errorf("%w: persist: %w", ErrAccountKey, err)
		}
		return key, nil

	default:
		return nil, fmt.Errorf("%w: load: %w", ErrAccountKey, err)
	}
}
