package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variables read by parseEnv.
const (
	EnvAddress          = "GOPHAUTH_ADDRESS"
	EnvDatabaseDSN      = "GOPHAUTH_DATABASE_DSN"
	EnvSecretKey        = "GOPHAUTH_SECRET_KEY"
	EnvSigningAlgorithm = "GOPHAUTH_SIGNING_ALGORITHM"
	EnvTokenTTLMinutes  = "GOPHAUTH_TOKEN_TTL_MINUTES"
	EnvUserStore        = "GOPHAUTH_USER_STORE"
	EnvTokenStore       = "GOPHAUTH_TOKEN_STORE"
	EnvRedisAddr        = "GOPHAUTH_REDIS_ADDR"
	EnvRedisPassword    = "GOPHAUTH_REDIS_PASSWORD"
	EnvRedisDB          = "GOPHAUTH_REDIS_DB"
	EnvRedisKeyPrefix   = "GOPHAUTH_REDIS_KEY_PREFIX"
	EnvPasswordHasher   = "GOPHAUTH_PASSWORD_HASHER"
	EnvLogLevel         = "GOPHAUTH_LOG_LEVEL"
)

// parseEnv overlays set, non-empty environment variables onto config.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	strs := []struct {
		key string
		dst *string
	}{
		{EnvAddress, &config.EndpointAddrHTTP},
		{EnvDatabaseDSN, &config.DatabaseDSN},
		{EnvSecretKey, &config.SecretKey},
		{EnvSigningAlgorithm, &config.SigningAlgorithm},
		{EnvUserStore, &config.UserStore},
		{EnvTokenStore, &config.TokenStore},
		{EnvRedisAddr, &config.RedisAddr},
		{EnvRedisPassword, &config.RedisPassword},
		{EnvRedisKeyPrefix, &config.RedisKeyPrefix},
		{EnvPasswordHasher, &config.PasswordHasher},
		{EnvLogLevel, &config.LogLevel},
	}
	for _, s := range strs {
		if v, ok := get(s.key); ok {
			*s.dst = v
		}
	}

	if v, ok := get(EnvTokenTTLMinutes); ok {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTokenTTLMinutes, err)
		}
		config.AccessTokenValidityDuration = time.Duration(minutes) * time.Minute
	}
	if v, ok := get(EnvRedisDB); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		config.RedisDB = db
	}

	return nil
}
