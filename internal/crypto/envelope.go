package crypto

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Format identifies which wire generation an envelope string was parsed from.
type Format int

const (
	// FormatAncient is the original "nonceHex:tagHex:ciphertextHex" form,
	// written before versioning existed. Implies version 1, aes256gcm.
	FormatAncient Format = iota
	// FormatLegacy is "v{version}:nonceHex:tagHex:ciphertextHex", written
	// after key rotation landed but before the algorithm tag.
	FormatLegacy
	// FormatCanonical is "v{version}.{algorithm}:nonceHex:tagHex:ciphertextHex",
	// the only form new encryptions produce.
	FormatCanonical
)

func (f Format) String() string {
	switch f {
	case FormatAncient:
		return "ancient"
	case FormatLegacy:
		return "legacy"
	case FormatCanonical:
		return "canonical"
	default:
		return "unknown"
	}
}

// Envelope is the decoded in-memory form of a stored ciphertext string. All
// three wire generations normalize into it; Format records which one the
// string arrived in.
type Envelope struct {
	Version    int
	Algorithm  Algorithm
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
	Format     Format
}

// ParseEnvelope decodes any of the three wire generations. It is the single
// place generation detection happens: three colon-separated fields means
// ancient, four means versioned, and the first field's "v{N}" or "v{N}.{alg}"
// shape separates legacy from canonical.
func ParseEnvelope(encoded string) (*Envelope, error) {
	parts := strings.Split(encoded, ":")

	env := Envelope{
		Version:   1,
		Algorithm: AlgorithmAES256GCM,
	}

	var fields []string
	switch len(parts) {
	case 3:
		env.Format = FormatAncient
		fields = parts
	case 4:
		version, algorithm, format, err := parseHeader(parts[0])
		if err != nil {
			return nil, err
		}
		env.Version = version
		env.Algorithm = algorithm
		env.Format = format
		fields = parts[1:]
	default:
		return nil, ErrInvalidFormat
	}

	nonce, err := hex.DecodeString(fields[0])
	if err != nil || len(nonce) != nonceSize {
		return nil, ErrInvalidIVLength
	}
	tag, err := hex.DecodeString(fields[1])
	if err != nil || len(tag) != tagSize {
		return nil, ErrInvalidTagLength
	}
	ciphertext, err := hex.DecodeString(fields[2])
	if err != nil {
		return nil, ErrInvalidFormat
	}

	env.Nonce = nonce
	env.Tag = tag
	env.Ciphertext = ciphertext
	return &env, nil
}

// parseHeader parses the "v{N}" (legacy) or "v{N}.{alg}" (canonical) token.
func parseHeader(head string) (int, Algorithm, Format, error) {
	if !strings.HasPrefix(head, "v") {
		return 0, "", 0, ErrInvalidFormat
	}

	versionPart := head[1:]
	algorithm := AlgorithmAES256GCM
	format := FormatLegacy

	if dot := strings.IndexByte(versionPart, '.'); dot >= 0 {
		alg := versionPart[dot+1:]
		if alg == "" {
			return 0, "", 0, ErrInvalidFormat
		}
		algorithm = Algorithm(alg)
		versionPart = versionPart[:dot]
		format = FormatCanonical
	}

	version, err := strconv.Atoi(versionPart)
	if err != nil || version < 1 {
		return 0, "", 0, ErrInvalidFormat
	}

	return version, algorithm, format, nil
}

// Encode serializes the envelope in the canonical format. Older generations
// are never written back; reads normalize, writes are always canonical.
func (e *Envelope) Encode() string {
	return fmt.Sprintf("v%d.%s:%s:%s:%s",
		e.Version, e.Algorithm,
		hex.EncodeToString(e.Nonce),
		hex.EncodeToString(e.Tag),
		hex.EncodeToString(e.Ciphertext),
	)
}

// EnvelopeVersion reports which key version an envelope string was written
// with. Parse-only: it never touches key material or decrypts anything.
func EnvelopeVersion(encoded string) (int, error) {
	env, err := ParseEnvelope(encoded)
	if err != nil {
		return 0, err
	}
	return env.Version, nil
}

// EnvelopeAlgorithm reports the algorithm tag of an envelope string, applying
// the same generation defaults as ParseEnvelope. Unknown future tags are
// returned as-is; rejecting them is the decryptor's job.
func EnvelopeAlgorithm(encoded string) (Algorithm, error) {
	env, err := ParseEnvelope(encoded)
	if err != nil {
		return "", err
	}
	return env.Algorithm, nil
}
