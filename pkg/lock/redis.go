package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/TitouanDH/BLab/pkg/util"
)

const (
	redisKeyPrefix = "blab:lock:"

	// redisTTL bounds how long a crashed holder can wedge a lock. Link
	// provisioning with verification retries stays well under this.
	redisTTL = 2 * time.Minute

	redisPollInterval = 200 * time.Millisecond
)

// releaseScript deletes the lock only if we still hold it, so an
// expired-and-reacquired lock is never released out from under the new
// holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared between engine instances through a Redis
// server.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping verifies the Redis server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	full := redisKeyPrefix + key

	for {
		ok, err := r.client.SetNX(ctx, full, token, redisTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisPollInterval):
		}
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{full}, token).Err(); err != nil {
			util.Warnf("releasing lock %s: %v", key, err)
		}
	}
	return release, nil
}

func randomToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
