// Package cache holds the shared redis client used for read-through caches.
package cache

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/openseva/seva-backend/internal/logger"
)

// NewClient connects to the redis named by REDIS_ADDR. Caching is optional:
// an empty REDIS_ADDR yields a nil client and callers fall through to the
// database.
func NewClient(log *logger.Logger) (*goredis.Client, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		log.Warn("REDIS_ADDR not set, caching disabled")
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
