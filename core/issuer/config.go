package issuer

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-acme/lego/v4/lego"
)

// Config holds issuance driver configuration with environment variable
// support.
type Config struct {
	// Domains to obtain and renew certificates for.
	Domains []string `env:"ACME_DOMAINS"`

	// Email is the contact address registered with the ACME account.
	Email string `env:"ACME_EMAIL"`

	// CacheDir stores the account key and issued certificates between runs;
	// without it every restart would hit the CA's rate limits.
	CacheDir string `env:"ACME_CACHE_DIR" envDefault:".acme-cache"`

	// DirectoryURL overrides the ACME directory. Empty selects Let's Encrypt
	// staging, or production when Production is set.
	DirectoryURL string `env:"ACME_DIRECTORY_URL"`

	// Production switches from the Let's Encrypt staging environment to
	// production. Staging is the default: its certificates are not browser
	// trusted but its rate limits are far more forgiving while testing.
	Production bool `env:"ACME_PRODUCTION" envDefault:"false"`

	// RenewBefore is how long before expiry a certificate is renewed.
	RenewBefore time.Duration `env:"ACME_RENEW_BEFORE" envDefault:"720h"`

	// CheckInterval is the pause between renewal checks when everything is
	// healthy.
	CheckInterval time.Duration `env:"ACME_CHECK_INTERVAL" envDefault:"12h"`
}

// Validate checks required fields and fills zero values with defaults.
func (c *Config) Validate() error {
	if len(c.Domains) == 0 {
		return ErrNoDomains
	}
	if c.CacheDir == "" {
		c.CacheDir = ".acme-cache"
	}
	if c.RenewBefore <= 0 {
		c.RenewBefore = 30 * 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 12 * time.Hour
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse issuer config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) directoryURL() string {
	if c.DirectoryURL != "" {
		return c.DirectoryURL
	}
	if c.Production {
		return lego.LEDirectoryProduction
	}
	return lego.LEDirectoryStaging
}
