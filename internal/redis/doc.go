// Package redis holds the Redis-backed collaborators: the shared client
// constructor and the reveal rate limiter.
package redis
