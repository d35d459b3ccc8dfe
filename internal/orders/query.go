package orders

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-image-orders/internal/redisx"
)

// Cache is the read-through store for status views.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Query answers status lookups, serving them from the cache when it can.
// A nil cache or a cache error falls back to the store.
type Query struct {
	repo  Repository
	cache Cache
	log   logrus.FieldLogger
}

func NewQuery(repo Repository, cache Cache, log logrus.FieldLogger) *Query {
	return &Query{repo: repo, cache: cache, log: log}
}

func (q *Query) Status(ctx context.Context, orderID string) (StatusView, error) {
	key := redisx.OrderStatusKey(orderID)
	if q.cache != nil {
		var v StatusView
		ok, err := q.cache.GetJSON(ctx, key, &v)
		if err != nil {
			q.log.WithError(err).WithField("order_id", orderID).Warn("status cache read failed")
		} else if ok {
			return v, nil
		}
	}

	o, err := q.repo.FindOrder(ctx, orderID)
	if err != nil {
		return StatusView{}, err
	}
	v := ViewOf(o)

	if q.cache != nil {
		ttl := redisx.TTLStatusCache
		if !o.Status.Terminal() {
			ttl = redisx.TTLStatusCacheActive
		}
		if err := q.cache.SetJSON(ctx, key, v, ttl); err != nil {
			q.log.WithError(err).WithField("order_id", orderID).Warn("status cache write failed")
		}
	}
	return v, nil
}

// Invalidate drops the cached view after the order's status changed.
func (q *Query) Invalidate(ctx context.Context, orderID string) {
	if q.cache == nil {
		return
	}
	if err := q.cache.Del(ctx, redisx.OrderStatusKey(orderID)); err != nil {
		q.log.WithError(err).WithField("order_id", orderID).Warn("status cache invalidate failed")
	}
}
