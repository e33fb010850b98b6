// Package crypto protects secrets at rest with AES-256-GCM.
//
// Envelopes are stored as opaque strings in the canonical format
// "v{version}.{algorithm}:{nonceHex}:{tagHex}:{ciphertextHex}". Two older
// wire generations (a version-prefixed form without an algorithm tag, and an
// unprefixed form) remain decodable for data written before the format
// stabilized. Key material is versioned so keys can be rotated without
// re-encrypting everything in one deploy: old envelopes stay readable as long
// as their key version remains configured, and ReEncrypt moves them forward.
package crypto
