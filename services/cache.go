package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"libraryhub_go/metrics"
	"libraryhub_go/middleware"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventStream = "library_events"

// hashCache stores JSON values in a Redis hash per key, one field per
// variant. Dropping the key invalidates every variant at once. A nil client
// turns every call into a miss.
type hashCache struct {
	rdb  *redis.Client
	name string
	ttl  time.Duration
}

func (c hashCache) get(ctx context.Context, key, field string, dst interface{}) bool {
	if c.rdb == nil {
		return false
	}
	data, err := c.rdb.HGet(ctx, key, field).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.WarnLogger("cache read failed", zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCache(c.name, false)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		middleware.WarnLogger("cache entry corrupt", zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
		metrics.RecordCache(c.name, false)
		return false
	}
	metrics.RecordCache(c.name, true)
	return true
}

func (c hashCache) set(ctx context.Context, key, field string, v interface{}) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		middleware.WarnLogger("cache encode failed", zap.String("cache", c.name), zap.Error(err))
		return
	}
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, field, data)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.WarnLogger("cache write failed", zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
	}
}

func (c hashCache) invalidate(ctx context.Context, keys ...string) {
	if c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		middleware.WarnLogger("cache invalidation failed", zap.String("cache", c.name), zap.Strings("keys", keys), zap.Error(err))
	}
}

// publishEvent appends an entry to the library event stream
func publishEvent(ctx context.Context, rdb *redis.Client, event string, values map[string]interface{}) {
	if rdb == nil {
		return
	}
	fields := map[string]interface{}{
		"event":     event,
		"timestamp": time.Now().Unix(),
	}
	for k, v := range values {
		fields[k] = v
	}
	err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: eventStream,
		MaxLen: 10000,
		Approx: true,
		Values: fields,
	}).Err()
	if err != nil {
		middleware.WarnLogger("event publish failed", zap.String("event", event), zap.Error(err))
	}
}

// invalidateMatching drops every key matching pattern
func (c hashCache) invalidateMatching(ctx context.Context, pattern string) {
	if c.rdb == nil {
		return
	}
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		middleware.WarnLogger("cache scan failed", zap.String("cache", c.name), zap.String("pattern", pattern), zap.Error(err))
		return
	}
	c.invalidate(ctx, keys...)
}
