package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrStreamAlreadyOpen is returned when the student already drives this
// attempt from another connection.
var ErrStreamAlreadyOpen = errors.New("assessment stream already open")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// StreamGuard keeps an attempt single-writer: at most one live session
// stream per student and assessment across all server instances.
type StreamGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStreamGuard creates a StreamGuard. The lease is renewed every ttl/3
// while held and expires after ttl if the holder dies without releasing it.
func NewStreamGuard(rdb *redis.Client, ttl time.Duration) *StreamGuard {
	return &StreamGuard{rdb: rdb, ttl: ttl}
}

// Acquire takes the lease. The returned release func is safe to call more
// than once.
func (g *StreamGuard) Acquire(ctx context.Context, assessmentID, studentID uuid.UUID) (func(), error) {
	key := config.CacheKey.StudentActiveStreamKey(assessmentID.String(), studentID.String())
	token := uuid.NewString()

	ok, err := g.rdb.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire stream lease: %w", err)
	}
	if !ok {
		return nil, ErrStreamAlreadyOpen
	}

	renewCtx, stop := context.WithCancel(context.Background())
	go g.renew(renewCtx, key, token)

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, g.rdb, []string{key}, token).Err()
		})
	}, nil
}

func (g *StreamGuard) renew(ctx context.Context, key, token string) {
	ticker := time.NewTicker(g.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := renewScript.Run(ctx, g.rdb, []string{key}, token, g.ttl.Milliseconds()).Int()
			if err == nil && n == 0 {
				// Lease lost; another holder owns the key now.
				return
			}
		}
	}
}
