// Package config loads the connector configuration from the JSON file the
// host passes with --config, with MARVEL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Sternrassler/marvel-comics-source/pkg/source"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MARVEL_PUB_KEY.
const EnvPrefix = "MARVEL"

var keys = []string{"pub_key", "priv_key", "max_offset", "max_pages", "base_url"}

// Load reads path (optional) and the environment into a validated config.
// Environment variables take precedence over the file.
func Load(path string) (source.Config, error) {
	v := viper.New()

	defaults := source.DefaultConfig()
	v.SetDefault("max_offset", defaults.MaxOffset)
	v.SetDefault("max_pages", defaults.MaxPages)
	v.SetDefault("base_url", defaults.BaseURL)

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return source.Config{}, fmt.Errorf("config file not found: %s", path)
			}
			return source.Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env values for bound keys.
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return source.Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg source.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return source.Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return source.Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
