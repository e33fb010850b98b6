// Package database provides PostgreSQL persistence for secrets. Envelopes
// are stored as opaque TEXT; the repository encrypts on write and decrypts
// on read, so plaintext never crosses the storage boundary.
package database
