package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tjmcgrath/reelbase/internal/config"
)

// redisPingTimeout bounds the startup connectivity check so a misconfigured
// URL fails fast instead of hanging boot.
const redisPingTimeout = 5 * time.Second

// NewRedis connects to the Redis instance named by cfg.URL and verifies the
// connection with a ping before returning. The client is shared by the
// lockout store and the movie response cache.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.ClientName = "reelbase"

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}
