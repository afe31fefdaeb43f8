package gatewaywebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glowmart/storefront-backend/pkg/redis"
)

// IdempotencyGuard dedupes gateway callbacks by request ref. The gateway
// retries callbacks until it sees a 2xx, so duplicates are routine.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, requestRef string) (bool, error) {
	if requestRef == "" {
		return false, errors.New("request ref is required")
	}
	key := g.store.IdempotencyKey(g.scope, requestRef)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *IdempotencyGuard) Delete(ctx context.Context, requestRef string) error {
	if requestRef == "" {
		return errors.New("request ref is required")
	}
	key := g.store.IdempotencyKey(g.scope, requestRef)
	return g.store.Del(ctx, key)
}
