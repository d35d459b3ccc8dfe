package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld means another worker currently owns the order.
var ErrLeaseHeld = errors.New("lease held by another worker")

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Leaser hands out expiring, token-owned locks on order ids.
type Leaser struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewLeaser(rdb redis.UniversalClient, ttl time.Duration) *Leaser {
	if ttl <= 0 {
		ttl = TTLOrderLease
	}
	return &Leaser{rdb: rdb, ttl: ttl}
}

// Acquire claims the lease on orderID for token, or returns ErrLeaseHeld.
func (l *Leaser) Acquire(ctx context.Context, orderID, token string) error {
	ok, err := l.rdb.SetNX(ctx, OrderLeaseKey(orderID), token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLeaseHeld
	}
	return nil
}

// Release drops the lease if token still owns it. Releasing an expired or foreign lease is a no-op.
func (l *Leaser) Release(ctx context.Context, orderID, token string) error {
	return releaseScript.Run(ctx, l.rdb, []string{OrderLeaseKey(orderID)}, token).Err()
}
