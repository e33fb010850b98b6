// Package domain holds the secret model, the repository and application
// contracts, and the sentinel errors shared across layers. It depends on
// nothing but the standard library and uuid; concrete storage, transport,
// and crypto live in their own packages.
package domain
