package crypto

import (
	"encoding/hex"
	"fmt"
)

// KeyringConfig is the explicit key material handed to NewService. The
// environment-variable lookup that produces it lives in platform/config, at
// the process boundary; nothing in this package reads the environment.
type KeyringConfig struct {
	// Keys maps a key version to its 64-hex-character AES-256 key.
	Keys map[int]string
	// DefaultKey, if non-empty, is used for any version without an entry in
	// Keys. It mirrors the fallback environment variable.
	DefaultKey string
	// CurrentVersion is the key version new encryptions use.
	CurrentVersion int
	// CurrentAlgorithm is the algorithm new encryptions use.
	CurrentAlgorithm Algorithm
}

// keyring resolves raw key bytes per version. Immutable after construction,
// safe for concurrent use.
type keyring struct {
	keys             map[int][]byte
	defaultKey       []byte
	currentVersion   int
	currentAlgorithm Algorithm
}

func newKeyring(cfg KeyringConfig) (*keyring, error) {
	if len(cfg.Keys) == 0 && cfg.DefaultKey == "" {
		return nil, fmt.Errorf("at least one key required: %w", ErrKeyNotConfigured)
	}
	if cfg.CurrentVersion < 1 {
		return nil, fmt.Errorf("current key version must be positive, got %d", cfg.CurrentVersion)
	}
	if cfg.CurrentAlgorithm != AlgorithmAES256GCM {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.CurrentAlgorithm)
	}

	kr := &keyring{
		keys:             make(map[int][]byte, len(cfg.Keys)),
		currentVersion:   cfg.CurrentVersion,
		currentAlgorithm: cfg.CurrentAlgorithm,
	}

	for version, hexKey := range cfg.Keys {
		if version < 1 {
			return nil, fmt.Errorf("key version must be positive, got %d", version)
		}
		key, err := decodeKey(hexKey)
		if err != nil {
			return nil, fmt.Errorf("key for version %d: %w", version, err)
		}
		kr.keys[version] = key
	}

	if cfg.DefaultKey != "" {
		key, err := decodeKey(cfg.DefaultKey)
		if err != nil {
			return nil, fmt.Errorf("default key: %w", err)
		}
		kr.defaultKey = key
	}

	if _, err := kr.resolve(cfg.CurrentVersion); err != nil {
		return nil, fmt.Errorf("current version %d has no key: %w", cfg.CurrentVersion, ErrKeyNotConfigured)
	}

	return kr, nil
}

// resolve returns the key bytes for a version, preferring the version-specific
// entry over the default.
func (k *keyring) resolve(version int) ([]byte, error) {
	if key, ok := k.keys[version]; ok {
		return key, nil
	}
	if k.defaultKey != nil {
		return k.defaultKey, nil
	}
	return nil, fmt.Errorf("no key configured for version %d: %w", version, ErrKeyNotConfigured)
}

func decodeKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != keySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}
