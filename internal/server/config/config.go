// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Storage backend names.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds runtime settings for the gophauth server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx), required when either store is "postgres".
//   - SecretKey: HMAC secret for signing access tokens. Required, no default.
//   - SigningAlgorithm: JWT algorithm identifier (HS256, HS384, HS512).
//   - AccessTokenValidityDuration: lifetime embedded in the exp claim, whole minutes.
//   - UserStore / TokenStore: backend for users ("memory", "postgres") and the
//     token registry ("memory", "postgres", "redis").
//   - Redis*: connection settings for the redis token registry.
//   - PasswordHasher: "argon2id" or "sha256" (legacy digests).
//   - LogLevel: debug, info, warn or error.
type Config struct {
	EndpointAddrHTTP            string
	DatabaseDSN                 string
	SecretKey                   string
	SigningAlgorithm            string
	AccessTokenValidityDuration time.Duration
	UserStore                   string
	TokenStore                  string
	RedisAddr                   string
	RedisPassword               string
	RedisDB                     int
	RedisKeyPrefix              string
	PasswordHasher              string
	LogLevel                    string
}

// LoadDefaults populates Config with development defaults. The signing
// secret is intentionally left empty so that it must come from outside.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.SigningAlgorithm = "HS256"
	c.AccessTokenValidityDuration = 30 * time.Minute
	c.UserStore = StoreMemory
	c.TokenStore = StoreMemory
	c.RedisKeyPrefix = "gophauth:"
	c.PasswordHasher = "argon2id"
	c.LogLevel = "info"
}

// TokenTTLMinutes returns the access token lifetime in whole minutes.
func (c *Config) TokenTTLMinutes() int {
	return int(c.AccessTokenValidityDuration / time.Minute)
}

// Validate reports the first missing or inconsistent setting. Every failure
// wraps common.ErrConfigurationMissing.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return missing("secret key", EnvSecretKey)
	}
	if strings.TrimSpace(c.SigningAlgorithm) == "" {
		return missing("signing algorithm", EnvSigningAlgorithm)
	}
	if c.TokenTTLMinutes() <= 0 {
		return missing("token lifetime in minutes", EnvTokenTTLMinutes)
	}

	switch c.UserStore {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("%w: unsupported user store %q", common.ErrConfigurationMissing, c.UserStore)
	}
	switch c.TokenStore {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("%w: unsupported token store %q", common.ErrConfigurationMissing, c.TokenStore)
	}

	if (c.UserStore == StorePostgres || c.TokenStore == StorePostgres) && c.DatabaseDSN == "" {
		return missing("database DSN", EnvDatabaseDSN)
	}
	if c.TokenStore == StoreRedis && c.RedisAddr == "" {
		return missing("redis address", EnvRedisAddr)
	}

	return nil
}

func missing(what, env string) error {
	return fmt.Errorf("%w: %s (%s)", common.ErrConfigurationMissing, what, env)
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
// The result is validated; any error is fatal for the caller.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
