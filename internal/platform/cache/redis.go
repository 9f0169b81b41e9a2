// Package cache provides the shared Redis client. Redis backs the token
// revocation denylist, dashboard statistics and the asynq queues.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a Redis client and verifies connectivity. A zero dialTimeout
// falls back to five seconds.
func New(ctx context.Context, addr string, dialTimeout time.Duration) (*redis.Client, error) {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		ClientName:  "rising",
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}
