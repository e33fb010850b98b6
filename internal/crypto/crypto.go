package crypto

import "errors"

// Algorithm identifies the AEAD construction an envelope was encrypted with.
// There is a single supported value today; the tag exists on the wire so a
// future cipher change does not break old data.
type Algorithm string

// AlgorithmAES256GCM is the only algorithm currently produced or accepted.
const AlgorithmAES256GCM Algorithm = "aes256gcm"

const (
	keySize   = 32 // AES-256
	nonceSize = 12 // GCM standard nonce
	tagSize   = 16 // GCM auth tag
)

// Configuration errors: key material missing or malformed. Never recovered
// automatically; there is no safe default key.
var (
	ErrKeyNotConfigured = errors.New("key environment variable not set")
	ErrInvalidKey       = errors.New("key must be 64 hexadecimal characters")
)

// Format errors: the envelope string does not match any recognized generation
// or a fixed-length field has the wrong size.
var (
	ErrInvalidFormat    = errors.New("invalid encrypted data format")
	ErrInvalidIVLength  = errors.New("invalid IV length")
	ErrInvalidTagLength = errors.New("invalid auth tag length")
	ErrUnknownAlgorithm = errors.New("unknown encryption algorithm")
)

// ErrDecryptionFailed is returned on any AEAD authentication failure. The
// message is intentionally generic: it must not reveal whether the key,
// the ciphertext, or the tag was wrong.
var ErrDecryptionFailed = errors.New("decryption failed")

// Encryptor is the surface storage-layer collaborators depend on. Service is
// the production implementation; cryptotest.Passthrough covers unit tests.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}
