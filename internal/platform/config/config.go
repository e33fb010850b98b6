package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidelock/stashbox/internal/crypto"
	"go-simpler.org/env"
)

const (
	defaultKeyVar     = "SECRET_ENCRYPTION_KEY"
	versionedKeyPref  = "SECRET_ENCRYPTION_KEY_V"
	currentVersionVar = "SECRET_ENCRYPTION_CURRENT_VERSION"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	AdminToken  string `env:"ADMIN_TOKEN"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	EncryptionKey            string `env:"SECRET_ENCRYPTION_KEY"`
	EncryptionCurrentVersion int    `env:"SECRET_ENCRYPTION_CURRENT_VERSION" default:"1"`

	RevealRateLimit  int           `env:"REVEAL_RATE_LIMIT" default:"10"`
	RevealRateWindow time.Duration `env:"REVEAL_RATE_WINDOW" default:"1m"`

	// MigrationSweepInterval is the cadence of the background envelope
	// migration sweep. Zero disables the sweep.
	MigrationSweepInterval time.Duration `env:"MIGRATION_SWEEP_INTERVAL" default:"0"`
	MigrationBatchSize     int           `env:"MIGRATION_BATCH_SIZE" default:"100"`

	// encryptionKeys maps key version to hex key, collected from
	// SECRET_ENCRYPTION_KEY_V{N} variables.
	encryptionKeys map[int]string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	keys, err := collectVersionedKeys(os.Environ())
	if err != nil {
		return nil, err
	}
	cfg.encryptionKeys = keys

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Keyring returns the explicit key material for crypto.NewService. This is
// the only place environment-shaped key configuration turns into the
// constructed value the crypto package consumes.
func (c *Config) Keyring() crypto.KeyringConfig {
	return crypto.KeyringConfig{
		Keys:             c.encryptionKeys,
		DefaultKey:       c.EncryptionKey,
		CurrentVersion:   c.EncryptionCurrentVersion,
		CurrentAlgorithm: crypto.AlgorithmAES256GCM,
	}
}

// KeyringFromEnv loads only the encryption-key surface of the environment.
// Used by the migration CLI, which has no business requiring the full server
// configuration.
func KeyringFromEnv() (crypto.KeyringConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	keys, err := collectVersionedKeys(os.Environ())
	if err != nil {
		return crypto.KeyringConfig{}, err
	}

	currentVersion := 1
	if v := os.Getenv(currentVersionVar); v != "" {
		currentVersion, err = strconv.Atoi(v)
		if err != nil || currentVersion < 1 {
			return crypto.KeyringConfig{}, fmt.Errorf("%s must be a positive integer, got %q", currentVersionVar, v)
		}
	}

	cfg := Config{
		EncryptionKey:            os.Getenv(defaultKeyVar),
		EncryptionCurrentVersion: currentVersion,
		encryptionKeys:           keys,
	}
	if err := validateKeys(&cfg); err != nil {
		return crypto.KeyringConfig{}, err
	}
	return cfg.Keyring(), nil
}

// collectVersionedKeys scans the environment for SECRET_ENCRYPTION_KEY_V{N}
// variables. A malformed version suffix is an error rather than silently
// ignored key material.
func collectVersionedKeys(environ []string) (map[int]string, error) {
	keys := make(map[int]string)
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, versionedKeyPref) {
			continue
		}
		version, err := strconv.Atoi(strings.TrimPrefix(name, versionedKeyPref))
		if err != nil || version < 1 {
			return nil, fmt.Errorf("%s has an invalid version suffix", name)
		}
		keys[version] = value
	}
	return keys, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
		"ADMIN_TOKEN":  cfg.AdminToken,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.RevealRateLimit < 1 {
		return fmt.Errorf("REVEAL_RATE_LIMIT must be at least 1, got %d", cfg.RevealRateLimit)
	}
	if cfg.RevealRateWindow <= 0 {
		return fmt.Errorf("REVEAL_RATE_WINDOW must be positive, got %s", cfg.RevealRateWindow)
	}
	if cfg.MigrationBatchSize < 1 {
		return fmt.Errorf("MIGRATION_BATCH_SIZE must be at least 1, got %d", cfg.MigrationBatchSize)
	}

	return validateKeys(cfg)
}

func validateKeys(cfg *Config) error {
	if cfg.EncryptionKey == "" && len(cfg.encryptionKeys) == 0 {
		return fmt.Errorf("%s or %s{N} is required", defaultKeyVar, versionedKeyPref)
	}

	if cfg.EncryptionCurrentVersion < 1 {
		return fmt.Errorf("%s must be a positive integer, got %d", currentVersionVar, cfg.EncryptionCurrentVersion)
	}

	if cfg.EncryptionKey != "" {
		if err := checkKeyMaterial(cfg.EncryptionKey); err != nil {
			return fmt.Errorf("%s %w", defaultKeyVar, err)
		}
	}
	for version, key := range cfg.encryptionKeys {
		if err := checkKeyMaterial(key); err != nil {
			return fmt.Errorf("%s%d %w", versionedKeyPref, version, err)
		}
	}

	if _, ok := cfg.encryptionKeys[cfg.EncryptionCurrentVersion]; !ok && cfg.EncryptionKey == "" {
		return fmt.Errorf("no key configured for current version %d: set %s%d or %s",
			cfg.EncryptionCurrentVersion, versionedKeyPref, cfg.EncryptionCurrentVersion, defaultKeyVar)
	}

	return nil
}

func checkKeyMaterial(hexKey string) error {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("must be exactly 64 hexadecimal characters (32 bytes)")
	}
	return nil
}
