// Package coordination provides Redis-based coordination between stashbox
// replicas: leader election for the envelope migration sweep and an instance
// registry for operational visibility.
package coordination

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNotLeader is returned by RenewLease when this instance has lost the lock.
var ErrNotLeader = errors.New("not leader")

// LeaderElection implements single-leader election using Redis SETNX. The
// leader holds a key with a TTL; other instances acquire leadership when the
// key expires (previous leader crashed or partitioned away). Only the leader
// runs the background envelope migration sweep, so a fleet of replicas never
// re-encrypts the same rows in parallel.
type LeaderElection struct {
	rdb        *goredis.Client
	instanceID string
	key        string
	ttl        time.Duration
}

// NewLeaderElection creates a leader election instance.
// key is the Redis key used for the election (e.g. "leader:envelope_migration");
// ttl is how long the leader holds the lock before it expires.
func NewLeaderElection(rdb *goredis.Client, instanceID, key string, ttl time.Duration) *LeaderElection {
	return &LeaderElection{
		rdb:        rdb,
		instanceID: instanceID,
		key:        key,
		ttl:        ttl,
	}
}

// TryBecomeLeader attempts to acquire leadership. Returns true if this
// instance now holds the lock.
func (l *LeaderElection) TryBecomeLeader(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
}

// renewScript atomically checks ownership before extending the TTL, so a
// stale ex-leader can never extend another instance's lock.
var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

// RenewLease extends the leader's TTL. Returns ErrNotLeader if this instance
// no longer holds the lock.
func (l *LeaderElection) RenewLease(ctx context.Context) error {
	result, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID, l.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return ErrNotLeader
	}
	return nil
}

// IsLeader checks whether this instance currently holds the lock.
func (l *LeaderElection) IsLeader(ctx context.Context) (bool, error) {
	current, err := l.rdb.Get(ctx, l.key).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return current == l.instanceID, nil
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// ReleaseLease voluntarily gives up leadership. Called on graceful shutdown;
// deletes the key only if this instance still owns it.
func (l *LeaderElection) ReleaseLease(ctx context.Context) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID).Err()
}
