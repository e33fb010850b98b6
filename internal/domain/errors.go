package domain

import "errors"

var (
	ErrSecretNotFound    = errors.New("secret not found")
	ErrSecretExists      = errors.New("secret already exists")
	ErrRevealRateLimited = errors.New("reveal rate limited")
)
