package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pharma-erp/backend/internal/config"
	"github.com/pharma-erp/backend/internal/domain"
)

const (
	orderKeyPrefix     = "purchase_order:"
	orderScanBatchSize = 100
)

// OrderCache is the read-through cache for purchase orders. It is owned by
// the API layer and invalidated explicitly per order id after every
// propagation run, successful or not.
type OrderCache interface {
	GetOrder(ctx context.Context, orderID string) (*domain.PurchaseOrder, bool, error)
	SetOrder(ctx context.Context, po *domain.PurchaseOrder) error
	Invalidate(ctx context.Context, orderID string) error
	InvalidateAll(ctx context.Context) error
}

type redisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopOrderCache struct{}

func NewOrderCache(cfg config.CacheConfig) (OrderCache, error) {
	if !cfg.Enabled {
		return &noopOrderCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisOrderCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopOrderCache() OrderCache {
	return &noopOrderCache{}
}

func (c *redisOrderCache) GetOrder(ctx context.Context, orderID string) (*domain.PurchaseOrder, bool, error) {
	payload, err := c.client.Get(ctx, orderKeyPrefix+orderID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var po domain.PurchaseOrder
	if err := json.Unmarshal(payload, &po); err != nil {
		return nil, false, fmt.Errorf("decode cached order: %w", err)
	}

	return &po, true, nil
}

func (c *redisOrderCache) SetOrder(ctx context.Context, po *domain.PurchaseOrder) error {
	payload, err := json.Marshal(po)
	if err != nil {
		return fmt.Errorf("encode order for cache: %w", err)
	}

	if err := c.client.Set(ctx, orderKeyPrefix+po.ID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisOrderCache) Invalidate(ctx context.Context, orderID string) error {
	return c.client.Del(ctx, orderKeyPrefix+orderID).Err()
}

func (c *redisOrderCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, orderKeyPrefix, orderScanBatchSize)
}

func (n *noopOrderCache) GetOrder(ctx context.Context, orderID string) (*domain.PurchaseOrder, bool, error) {
	return nil, false, nil
}

func (n *noopOrderCache) SetOrder(ctx context.Context, po *domain.PurchaseOrder) error {
	return nil
}

func (n *noopOrderCache) Invalidate(ctx context.Context, orderID string) error {
	return nil
}

func (n *noopOrderCache) InvalidateAll(ctx context.Context) error {
	return nil
}
