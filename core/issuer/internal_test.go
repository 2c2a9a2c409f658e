package issuer

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/lego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/acme/autocert"
)

// keyCache is a minimal in-memory autocert.Cache for white-box tests.
type keyCache map[string][]byte

func (c keyCache) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := c[key]
	if !ok {
		return nil, autocert.ErrCacheMiss
	}
	return data, nil
}

func (c keyCache) Put(_ context.Context, key string, data []byte) error {
	c[key] = data
	return nil
}

func (c keyCache) Delete(_ context.Context, key string) error {
	delete(c, key)
	return nil
}

func newTestState(t *testing.T) *State {
	t.Helper()

	state, err := New(Config{
		Domains:       []string{"domain.example"},
		RenewBefore:   30 * 24 * time.Hour,
		CheckInterval: 12 * time.Hour,
	}, WithCache(keyCache{}))
	require.NoError(t, err)
	return state
}

func TestALPNSolver(t *testing.T) {
	t.Parallel()

	state := newTestState(t)
	solver := &alpnSolver{state: state}

	t.Run("no pending challenge", func(t *testing.T) {
		_, err := state.getChallengeCertificate(&tls.ClientHelloInfo{
			ServerName: "domain.example",
		})
		assert.ErrorIs(t, err, ErrNoChallengeCert)
	})

	t.Run("present makes the challenge certificate available", func(t *testing.T) {
		require.NoError(t, solver.Present("domain.example", "token", "token.keyauth"))

		cert, err := state.getChallengeCertificate(&tls.ClientHelloInfo{
			ServerName: "domain.example",
		})
		require.NoError(t, err)
		require.NotNil(t, cert.Leaf)

		// The certificate must carry the acmeIdentifier extension the
		// validator checks for.
		found := false
		for _, ext := range cert.Leaf.Extensions {
			if ext.Critical && len(ext.Value) > 0 {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("cleanup removes it again", func(t *testing.T) {
		require.NoError(t, solver.CleanUp("domain.example", "token", "token.keyauth"))

		_, err := state.getChallengeCertificate(&tls.ClientHelloInfo{
			ServerName: "domain.example",
		})
		assert.ErrorIs(t, err, ErrNoChallengeCert)
	})
}

func TestLoadOrCreateAccountKey(t *testing.T) {
	t.Parallel()

	cache := keyCache{}
	state := newTestState(t)
	state.cache = cache

	ctx := context.Background()

	first, err := state.loadOrCreateAccountKey(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Contains(t, cache, accountKeyCacheKey)

	// A second load restores the identical key instead of minting a new one.
	second, err := state.loadOrCreateAccountKey(ctx)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))

	t.Run("rejects corrupted key material", func(t *testing.T) {
		cache[accountKeyCacheKey] = []byte("not a pem block")
		_, err := state.loadOrCreateAccountKey(ctx)
		assert.ErrorIs(t, err, ErrAccountKey)
	})
}

func TestDirectoryURL(t *testing.T) {
	t.Parallel()

	t.Run("defaults to staging", func(t *testing.T) {
		cfg := Config{}
		assert.Equal(t, lego.LEDirectoryStaging, cfg.directoryURL())
	})

	t.Run("production flag", func(t *testing.T) {
		cfg := Config{Production: true}
		assert.Equal(t, lego.LEDirectoryProduction, cfg.directoryURL())
	})

	t.Run("explicit override wins", func(t *testing.T) {
		cfg := Config{DirectoryURL: "https://acme.internal/dir", Production: true}
		assert.Equal(t, "https://acme.internal/dir", cfg.directoryURL())
	})
}

func TestOptionsOverrideConfig(t *testing.T) {
	t.Parallel()

	state, err := New(Config{Domains: []string{"domain.example"}},
		WithCache(keyCache{}),
		WithDirectoryURL("https://acme.internal/dir"),
		WithRenewBefore(10*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "https://acme.internal/dir", state.cfg.directoryURL())
	assert.Equal(t, 10*24*time.Hour, state.cfg.RenewBefore)
}

func TestParseCombined(t *testing.T) {
	t.Parallel()

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := parseCombined([]byte("neither cert nor key"))
		assert.Error(t, err)
	})
}

func TestLeafNotAfter(t *testing.T) {
	t.Parallel()

	assert.True(t, leafNotAfter(&tls.Certificate{}).IsZero())
}
