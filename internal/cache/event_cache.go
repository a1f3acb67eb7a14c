package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campus-ticketing/internal/metrics"
	"campus-ticketing/internal/model"
	"campus-ticketing/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type EventSource interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
}

// EventCache is a read-through cache of catalog events. Counters in a cached copy
// may lag; capacity is always enforced by the ledger transaction, never from here.
type EventCache interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	Invalidate(ctx context.Context, id uuid.UUID) error
}

type RedisEventCacheImpl struct {
	client redis.UniversalClient
	source EventSource
	ttl    time.Duration
	group  singleflight.Group
	log    *zap.Logger
}

func NewRedisEventCache(client redis.UniversalClient, source EventSource, ttl time.Duration) EventCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisEventCacheImpl{
		client: client,
		source: source,
		ttl:    ttl,
		log:    logger.WithComponent("event_cache"),
	}
}

func eventKey(id uuid.UUID) string {
	return fmt.Sprintf("event:%s", id)
}

func (c *RedisEventCacheImpl) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	key := eventKey(id)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var event model.Event
		if err := json.Unmarshal(raw, &event); err == nil {
			metrics.EventCacheTotal.WithLabelValues("hit").Inc()
			return &event, nil
		}
		c.log.Warn("Dropping undecodable cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		// Redis trouble degrades to reading the source.
		c.log.Warn("Event cache read failed", zap.String("key", key), zap.Error(err))
	}
	metrics.EventCacheTotal.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		event, err := c.source.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, event)
		return event, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Event), nil
}

func (c *RedisEventCacheImpl) store(ctx context.Context, key string, event *model.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.log.Warn("Event cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("Event cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisEventCacheImpl) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, eventKey(id)).Err()
}
