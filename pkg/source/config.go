package source

import (
	"fmt"
	"net/url"

	"github.com/Sternrassler/marvel-comics-source/pkg/auth"
	"github.com/Sternrassler/marvel-comics-source/pkg/client"
	"github.com/Sternrassler/marvel-comics-source/pkg/pagination"
)

// Config is the connector configuration supplied by the host.
type Config struct {
	PublicKey  string `json:"pub_key" mapstructure:"pub_key"`
	PrivateKey string `json:"priv_key" mapstructure:"priv_key"`

	// MaxOffset stops the walk once data.offset reaches it; -1 reads until
	// data.total is exhausted.
	MaxOffset int `json:"max_offset" mapstructure:"max_offset"`

	// MaxPages caps requests per read.
	MaxPages int `json:"max_pages" mapstructure:"max_pages"`

	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// DefaultConfig returns a config with every optional key at its default.
func DefaultConfig() Config {
	return Config{
		MaxOffset: pagination.DefaultMaxOffset,
		MaxPages:  pagination.DefaultMaxPages,
		BaseURL:   client.DefaultBaseURL,
	}
}

// Credentials returns the key pair.
func (c Config) Credentials() auth.Credentials {
	return auth.Credentials{
		PublicKey:  c.PublicKey,
		PrivateKey: c.PrivateKey,
	}
}

// Validate checks required keys and ranges.
func (c Config) Validate() error {
	if err := c.Credentials().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.MaxOffset < pagination.Unbounded {
		return fmt.Errorf("invalid config: max_offset must be >= %d (got %d)", pagination.Unbounded, c.MaxOffset)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("invalid config: max_pages must be >= 0 (got %d)", c.MaxPages)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("invalid config: base_url is required")
	}
	return nil
}

// Policy returns the pagination policy for this config.
func (c Config) Policy() pagination.Policy {
	return pagination.Policy{
		MaxOffset: c.MaxOffset,
		MaxPages:  c.MaxPages,
	}
}

// ClientConfig returns a client config pointed at BaseURL with quota
// accounting keyed by the public key. Every attempt, retries included, is
// signed again just before it goes out. Callers add Redis and caching.
func (c Config) ClientConfig() client.Config {
	signer := auth.NewSigner(c.Credentials())

	cfg := client.DefaultConfig()
	cfg.BaseURL = c.BaseURL
	cfg.Account = c.PublicKey
	cfg.Authorize = func(q url.Values) { signer.SignParams(q) }
	return cfg
}
