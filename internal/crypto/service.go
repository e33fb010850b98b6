package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Service performs authenticated encryption of short plaintext secrets using
// a versioned keyring. All methods are safe for concurrent use: the keyring
// is immutable and a fresh cipher context is built per call.
type Service struct {
	keyring *keyring
}

// NewService validates the key material and returns a ready service.
func NewService(cfg KeyringConfig) (*Service, error) {
	kr, err := newKeyring(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{keyring: kr}, nil
}

// CurrentVersion returns the key version new encryptions use.
func (s *Service) CurrentVersion() int {
	return s.keyring.currentVersion
}

// Encrypt encrypts plaintext under the current key version and algorithm,
// returning a canonical-format envelope string. The empty string is valid
// input and yields an envelope with zero-length ciphertext.
func (s *Service) Encrypt(plaintext string) (string, error) {
	return s.EncryptWithVersion(plaintext, s.keyring.currentVersion, s.keyring.currentAlgorithm)
}

// EncryptWithVersion encrypts under an explicit key version and algorithm.
// Used by migration when the current policy is what's requested anyway, and
// by tests exercising rotation.
func (s *Service) EncryptWithVersion(plaintext string, version int, algorithm Algorithm) (string, error) {
	if algorithm != AlgorithmAES256GCM {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}

	key, err := s.keyring.resolve(version)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal output is ciphertext || tag; the envelope keeps them as separate
	// fields on the wire.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	split := len(sealed) - tagSize

	env := Envelope{
		Version:    version,
		Algorithm:  algorithm,
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
		Format:     FormatCanonical,
	}
	return env.Encode(), nil
}

// Decrypt decodes an envelope of any generation, resolves the key for its
// version, and returns the plaintext. Parse errors propagate unchanged; any
// authentication failure collapses to ErrDecryptionFailed.
func (s *Service) Decrypt(encoded string) (string, error) {
	env, err := ParseEnvelope(encoded)
	if err != nil {
		return "", err
	}

	if env.Algorithm != AlgorithmAES256GCM {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, env.Algorithm)
	}

	key, err := s.keyring.resolve(env.Version)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := gcm.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// NeedsMigration reports whether an envelope is stale: anything that is not
// canonical-format, current-version, current-algorithm. Ancient and legacy
// strings are always stale even when their inferred version matches the
// current one, because the goal is to normalize the wire format, not just
// the key. Parse-only; never decrypts.
func (s *Service) NeedsMigration(encoded string) (bool, error) {
	env, err := ParseEnvelope(encoded)
	if err != nil {
		return false, err
	}
	stale := env.Format != FormatCanonical ||
		env.Version != s.keyring.currentVersion ||
		env.Algorithm != s.keyring.currentAlgorithm
	return stale, nil
}

// ReEncrypt decrypts an envelope of any generation and re-encrypts it under
// the current version and algorithm. Requires the old version's key to still
// be configured; parse and decryption errors propagate unchanged.
func (s *Service) ReEncrypt(encoded string) (string, error) {
	plaintext, err := s.Decrypt(encoded)
	if err != nil {
		return "", err
	}
	return s.Encrypt(plaintext)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
