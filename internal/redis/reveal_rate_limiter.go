package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// revealCountScript atomically increments the window counter and sets its
// expiry on first use. Keeping INCR and PEXPIRE in one script means a crash
// between them can never leave an immortal counter behind.
// ARGV: [1]=window TTL in milliseconds
var revealCountScript = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RevealRateLimiter implements fixed-window rate limiting for secret
// reveals, per calling client. The window index is derived from the clock so
// tests can step through windows with a fake clock.
type RevealRateLimiter struct {
	rdb    *goredis.Client
	clock  clockwork.Clock
	limit  int
	window time.Duration
}

// NewRevealRateLimiter creates a reveal rate limiter.
// limit: maximum reveals per window per client.
// window: window length.
func NewRevealRateLimiter(rdb *goredis.Client, clock clockwork.Clock, limit int, window time.Duration) *RevealRateLimiter {
	return &RevealRateLimiter{
		rdb:    rdb,
		clock:  clock,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether the client may reveal another secret in the current
// window. The counter increments even for denied calls; hammering a denied
// limit does not earn earlier access.
func (l *RevealRateLimiter) Allow(ctx context.Context, clientID string) (bool, error) {
	windowIdx := l.clock.Now().UnixMilli() / l.window.Milliseconds()
	key := fmt.Sprintf("rate_limit:reveal:%s:%d", clientID, windowIdx)

	// Keep the key around for two windows so clock skew between instances
	// cannot expire a live counter.
	count, err := revealCountScript.Run(ctx, l.rdb, []string{key}, 2*l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("reveal rate limit check failed: %w", err)
	}

	return count <= int64(l.limit), nil
}
