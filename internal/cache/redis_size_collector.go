package cache

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"skypost/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// StartRedisSizeCollector periodically samples used_memory from INFO and
// exports it as a gauge.
func StartRedisSizeCollector(ctx context.Context, client *redis.Client, interval time.Duration, logger *slog.Logger) {
	if client == nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		update := func() {
			info, err := client.Info(ctx, "memory").Result()
			if err != nil {
				metrics.IncRedisError("get")
				logger.Debug("redis info failed", "error", err)
				return
			}
			// looking for a line like: used_memory:123456
			for _, line := range strings.Split(info, "\n") {
				line = strings.TrimSpace(line)
				if strings.HasPrefix(line, "used_memory:") {
					v := strings.TrimSpace(strings.TrimPrefix(line, "used_memory:"))
					if n, err := strconv.ParseInt(v, 10, 64); err == nil {
						metrics.SetRedisCacheSizeBytes(n)
					}
					return
				}
			}
		}

		update()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				update()
			}
		}
	}()
}
