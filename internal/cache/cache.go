// Package cache memoizes read-model responses. The cache is advisory:
// a miss or a Redis failure only costs a database round trip. Every
// mutation invalidates the affected users' entries synchronously after
// commit, so entries are never stale beyond an in-flight request.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type BoardCache interface {
	GetBoard(ctx context.Context, userID int64) ([]byte, bool)
	SetBoard(ctx context.Context, userID int64, payload []byte)
	Invalidate(ctx context.Context, userIDs ...int64)
}

const boardTTL = 5 * time.Minute

type redisCache struct {
	rdb *redis.Client
}

func NewRedis(addr, password string, db int) BoardCache {
	return &redisCache{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func boardKey(userID int64) string {
	return fmt.Sprintf("board:user:%d", userID)
}

func (c *redisCache) GetBoard(ctx context.Context, userID int64) ([]byte, bool) {
	payload, err := c.rdb.Get(ctx, boardKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[cache][get][err] user=%d: %v", userID, err)
		}
		return nil, false
	}
	return payload, true
}

func (c *redisCache) SetBoard(ctx context.Context, userID int64, payload []byte) {
	if err := c.rdb.Set(ctx, boardKey(userID), payload, boardTTL).Err(); err != nil {
		log.Printf("[cache][set][err] user=%d: %v", userID, err)
	}
}

func (c *redisCache) Invalidate(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, boardKey(id))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[cache][del][err] keys=%v: %v", keys, err)
	}
}

// Noop serves deployments without Redis.
type Noop struct{}

func (Noop) GetBoard(context.Context, int64) ([]byte, bool) { return nil, false }
func (Noop) SetBoard(context.Context, int64, []byte)        {}
func (Noop) Invalidate(context.Context, ...int64)           {}
