package database

import (
	"context"
	"fmt"
	"time"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisConnectAttempts = 3

// NewRedisClient connects to the Redis instance backing the security-log
// queue, the live monitor channels and stream leases. The first ping is
// retried with a short backoff.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	// BLPop in the worker holds a connection for its whole poll window.
	opt.ReadTimeout = 5 * time.Second

	rdb := redis.NewClient(opt)

	var pingErr error
	for attempt := 1; attempt <= redisConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		pingErr = rdb.Ping(pingCtx).Err()
		cancel()
		if pingErr == nil {
			break
		}
		log.Warn().Err(pingErr).Int("attempt", attempt).Msg("Redis not reachable yet")
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	if pingErr != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}
