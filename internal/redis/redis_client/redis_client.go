package redis_client

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	dialTimeout  = 2 * time.Second
	readTimeout  = 3 * time.Second // must exceed the stream consumer's block time
	writeTimeout = 1500 * time.Millisecond
	pingAttempts = 3
)

// NewRedisClient connects and pings, retrying a few times before giving up.
func NewRedisClient(ctx context.Context, host string, port int) (*redis.Client, error) {
	maxPool := runtime.NumCPU() * 8
	if maxPool > 512 {
		maxPool = 512
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	rc := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     maxPool,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rc.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			zap.L().Info("redis connected", zap.String("addr", addr))
			return rc, nil
		}
		zap.L().Warn("redis_connect", zap.String("addr", addr), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			_ = rc.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	_ = rc.Close()
	return nil, fmt.Errorf("redis connection failed: %w", err)
}
