package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.uber.org/zap"
)

const (
	orderKeyPrefix   = "order:"
	userOrdersPrefix = "user_orders:"
	defaultCacheTTL  = 5 * time.Minute
)

// RedisOrderCache implements OrderCache using Redis.
type RedisOrderCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisOrderCache creates a new Redis-based order cache.
func NewRedisOrderCache(cfg config.RedisConfig, logger *zap.Logger) *RedisOrderCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return NewRedisOrderCacheWithClient(client, cfg.TTL, logger)
}

// NewRedisOrderCacheWithClient wraps an existing client.
func NewRedisOrderCacheWithClient(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisOrderCache {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	return &RedisOrderCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("order-cache"),
	}
}

// Get retrieves an order from cache. A miss returns nil, nil.
func (c *RedisOrderCache) Get(ctx context.Context, id string) (*models.Order, error) {
	data, err := c.client.Get(ctx, orderKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Cache miss", zap.String("order_id", id))
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}

	c.logger.Debug("Cache hit", zap.String("order_id", id))
	return &order, nil
}

// Set stores an order in cache.
func (c *RedisOrderCache) Set(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, orderKeyPrefix+order.ID, data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", zap.String("order_id", order.ID), zap.Error(err))
		return err
	}

	c.logger.Debug("Order cached",
		zap.String("order_id", order.ID),
		zap.Duration("ttl", c.ttl),
	)
	return nil
}

// Delete removes an order from cache.
func (c *RedisOrderCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, orderKeyPrefix+id).Err(); err != nil {
		c.logger.Error("Cache delete error", zap.String("order_id", id), zap.Error(err))
		return err
	}
	return nil
}

// GetByUserID retrieves the cached order list of a user.
func (c *RedisOrderCache) GetByUserID(ctx context.Context, userID string) ([]*models.Order, error) {
	data, err := c.client.Get(ctx, userOrdersPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var orders []*models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SetByUserID caches the order list of a user.
func (c *RedisOrderCache) SetByUserID(ctx context.Context, userID string, orders []*models.Order) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, userOrdersPrefix+userID, data, c.ttl).Err()
}

// InvalidateByUserID removes the cached order list of a user.
func (c *RedisOrderCache) InvalidateByUserID(ctx context.Context, userID string) error {
	return c.client.Del(ctx, userOrdersPrefix+userID).Err()
}

// Close closes the underlying client.
func (c *RedisOrderCache) Close() error {
	return c.client.Close()
}
