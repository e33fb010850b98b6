package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validNonceHex = "000102030405060708090a0b"                                         // 12 bytes
	validTagHex   = "000102030405060708090a0b0c0d0e0f"                                 // 16 bytes
	validCTHex    = "deadbeef"
)

func validBody() string {
	return validNonceHex + ":" + validTagHex + ":" + validCTHex
}

func TestParseEnvelope_Generations(t *testing.T) {
	t.Run("ancient format defaults version and algorithm", func(t *testing.T) {
		env, err := ParseEnvelope(validBody())
		require.NoError(t, err)
		assert.Equal(t, FormatAncient, env.Format)
		assert.Equal(t, 1, env.Version)
		assert.Equal(t, AlgorithmAES256GCM, env.Algorithm)
		assert.Len(t, env.Nonce, 12)
		assert.Len(t, env.Tag, 16)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, env.Ciphertext)
	})

	t.Run("legacy format carries version, defaults algorithm", func(t *testing.T) {
		env, err := ParseEnvelope("v3:" + validBody())
		require.NoError(t, err)
		assert.Equal(t, FormatLegacy, env.Format)
		assert.Equal(t, 3, env.Version)
		assert.Equal(t, AlgorithmAES256GCM, env.Algorithm)
	})

	t.Run("canonical format carries version and algorithm", func(t *testing.T) {
		env, err := ParseEnvelope("v2.aes256gcm:" + validBody())
		require.NoError(t, err)
		assert.Equal(t, FormatCanonical, env.Format)
		assert.Equal(t, 2, env.Version)
		assert.Equal(t, AlgorithmAES256GCM, env.Algorithm)
	})

	t.Run("unknown algorithm tag parses", func(t *testing.T) {
		// Projection must not require the algorithm to be supported.
		env, err := ParseEnvelope("v2.chacha20poly1305:" + validBody())
		require.NoError(t, err)
		assert.Equal(t, Algorithm("chacha20poly1305"), env.Algorithm)
	})

	t.Run("empty ciphertext is valid", func(t *testing.T) {
		env, err := ParseEnvelope("v1.aes256gcm:" + validNonceHex + ":" + validTagHex + ":")
		require.NoError(t, err)
		assert.Empty(t, env.Ciphertext)
	})
}

func TestParseEnvelope_Rejection(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		want    error
	}{
		{"empty string", "", ErrInvalidFormat},
		{"one field", "deadbeef", ErrInvalidFormat},
		{"two fields", validNonceHex + ":" + validTagHex, ErrInvalidFormat},
		{"five fields", "v1.aes256gcm:" + validBody() + ":extra", ErrInvalidFormat},
		{"header without v prefix", "x1.aes256gcm:" + validBody(), ErrInvalidFormat},
		{"header with non-numeric version", "vtwo:" + validBody(), ErrInvalidFormat},
		{"header with zero version", "v0:" + validBody(), ErrInvalidFormat},
		{"header with negative version", "v-1:" + validBody(), ErrInvalidFormat},
		{"canonical header with empty algorithm", "v1.:" + validBody(), ErrInvalidFormat},
		{"nonce wrong length", "v1:" + "abcd" + ":" + validTagHex + ":" + validCTHex, ErrInvalidIVLength},
		{"nonce bad hex", "v1:" + strings.Repeat("zz", 12) + ":" + validTagHex + ":" + validCTHex, ErrInvalidIVLength},
		{"tag wrong length", "v1:" + validNonceHex + ":abcd:" + validCTHex, ErrInvalidTagLength},
		{"tag bad hex", "v1:" + validNonceHex + ":" + strings.Repeat("zz", 16) + ":" + validCTHex, ErrInvalidTagLength},
		{"ciphertext bad hex", "v1:" + validNonceHex + ":" + validTagHex + ":zz", ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope(tt.encoded)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEnvelope_EncodeRoundTrip(t *testing.T) {
	original := "v5.aes256gcm:" + validBody()
	env, err := ParseEnvelope(original)
	require.NoError(t, err)
	assert.Equal(t, original, env.Encode())
}

func TestEnvelope_EncodeNormalizesOldGenerations(t *testing.T) {
	env, err := ParseEnvelope(validBody())
	require.NoError(t, err)
	assert.Equal(t, "v1.aes256gcm:"+validBody(), env.Encode())

	env, err = ParseEnvelope("v4:" + validBody())
	require.NoError(t, err)
	assert.Equal(t, "v4.aes256gcm:"+validBody(), env.Encode())
}

func TestEnvelopeVersion(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		want    int
	}{
		{"ancient defaults to 1", validBody(), 1},
		{"legacy", "v7:" + validBody(), 7},
		{"canonical", "v12.aes256gcm:" + validBody(), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EnvelopeVersion(tt.encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("garbage fails", func(t *testing.T) {
		_, err := EnvelopeVersion("not-an-envelope")
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})
}

func TestEnvelopeAlgorithm(t *testing.T) {
	got, err := EnvelopeAlgorithm("v2:" + validBody())
	require.NoError(t, err)
	assert.Equal(t, AlgorithmAES256GCM, got)

	got, err = EnvelopeAlgorithm("v2.future-alg:" + validBody())
	require.NoError(t, err)
	assert.Equal(t, Algorithm("future-alg"), got)
}
