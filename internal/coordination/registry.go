package coordination

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	registryKey  = "instances"
	activeMaxAge = 60 * time.Second
)

// InstanceRegistry tracks active stashbox instances in Redis. Each instance
// sends periodic heartbeats to a shared hash; instances without a heartbeat
// within activeMaxAge are considered gone.
type InstanceRegistry struct {
	rdb        *goredis.Client
	instanceID string
	heartbeat  time.Duration
	version    string
}

// InstanceInfo holds metadata about an instance.
type InstanceInfo struct {
	InstanceID string `json:"instance_id"`
	Timestamp  int64  `json:"timestamp"`
	Version    string `json:"version"`
}

// NewInstanceRegistry creates an instance registry.
// instanceID should be unique per instance (e.g. hostname-PID);
// heartbeat is how often this instance refreshes its registration.
func NewInstanceRegistry(rdb *goredis.Client, instanceID string, heartbeat time.Duration, version string) *InstanceRegistry {
	return &InstanceRegistry{
		rdb:        rdb,
		instanceID: instanceID,
		heartbeat:  heartbeat,
		version:    version,
	}
}

// Start begins the heartbeat loop. Registers immediately, then refreshes on
// the heartbeat interval. Blocks until ctx is cancelled, then unregisters.
func (r *InstanceRegistry) Start(ctx context.Context) {
	r.register(ctx)

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.register(ctx)
		case <-ctx.Done():
			r.unregister()
			return
		}
	}
}

func (r *InstanceRegistry) register(ctx context.Context) {
	info := InstanceInfo{
		InstanceID: r.instanceID,
		Timestamp:  time.Now().Unix(),
		Version:    r.version,
	}

	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	r.rdb.HSet(ctx, registryKey, r.instanceID, data)
}

func (r *InstanceRegistry) unregister() {
	r.rdb.HDel(context.Background(), registryKey, r.instanceID)
}

// ActiveInstances returns info for all instances with a recent heartbeat.
func (r *InstanceRegistry) ActiveInstances(ctx context.Context) ([]InstanceInfo, error) {
	entries, err := r.rdb.HGetAll(ctx, registryKey).Result()
	if err != nil {
		return nil, err
	}

	infos := []InstanceInfo{}
	now := time.Now().Unix()
	for _, data := range entries {
		var info InstanceInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		if now-info.Timestamp < int64(activeMaxAge.Seconds()) {
			infos = append(infos, info)
		}
	}
	return infos, nil
}
