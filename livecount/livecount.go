// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package livecount keeps per-checkpoint head counts in Redis.
package livecount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/scanpoint/checkin"
	"github.com/danielhkuo/scanpoint/models"
)

// recordTimeout bounds the counter update that follows a submission
const recordTimeout = 2 * time.Second

// decrFloor decrements a counter without letting it go below zero
var decrFloor = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n <= 0 then
	redis.call("SET", KEYS[1], 0)
	return 0
end
return redis.call("DECR", KEYS[1])
`)

// Connect opens a redis client from a redis:// URL and checks it answers
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Counter tracks how many visitors are currently inside each checkpoint
type Counter struct {
	rdb redis.Cmdable
	log *slog.Logger
}

func New(rdb redis.Cmdable, logger *slog.Logger) *Counter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Counter{rdb: rdb, log: logger}
}

// Key is the redis key of a checkpoint's counter
func Key(checkpointID string) string {
	return fmt.Sprintf("checkinpoint:%s:count", checkpointID)
}

// Record moves the count for a successful scan: up on check-in, down on
// check-out. The count never drops below zero.
func (c *Counter) Record(ctx context.Context, checkpointID string, dir checkin.Direction) (int64, error) {
	key := Key(checkpointID)
	switch dir {
	case checkin.DirectionCheckin:
		return c.rdb.Incr(ctx, key).Result()
	case checkin.DirectionCheckout:
		return decrFloor.Run(ctx, c.rdb, []string{key}).Int64()
	default:
		return 0, checkin.ErrBadDirection
	}
}

// Get returns the current count; an unknown checkpoint counts zero
func (c *Counter) Get(ctx context.Context, checkpointID string) (int64, error) {
	n, err := c.rdb.Get(ctx, Key(checkpointID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (c *Counter) CameraStarted(error) {}

func (c *Counter) Decoded(error) {}

// Submitted updates the count after a successful check-in or check-out
func (c *Counter) Submitted(dir checkin.Direction, cp models.Checkpoint, res checkin.Result) {
	if res.Outcome != checkin.OutcomeSuccess {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	n, err := c.Record(ctx, cp.ID, dir)
	if err != nil {
		c.log.Error("failed to update live count", "checkpoint", cp.ID, "direction", dir, "error", err)
		return
	}
	c.log.Debug("live count updated", "checkpoint", cp.ID, "count", n)
}
