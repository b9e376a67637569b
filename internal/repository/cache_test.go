package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.uber.org/zap"
)

func TestRedisOrderCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Integration test - set REDIS_TEST_ADDR to run")
	}

	ctx := context.Background()
	cache := NewRedisOrderCacheWithClient(redis.NewClient(&redis.Options{Addr: addr}), time.Minute, zap.NewNop())
	t.Cleanup(func() { cache.Close() })

	order := &models.Order{ID: uuid.NewString(), UserID: uuid.NewString(), OrderStatus: models.OrderStatusPending, TotalPrice: 20}

	miss, err := cache.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, cache.Set(ctx, order))
	hit, err := cache.Get(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, order.TotalPrice, hit.TotalPrice)

	require.NoError(t, cache.SetByUserID(ctx, order.UserID, []*models.Order{order}))
	list, err := cache.GetByUserID(ctx, order.UserID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, cache.InvalidateByUserID(ctx, order.UserID))
	list, err = cache.GetByUserID(ctx, order.UserID)
	require.NoError(t, err)
	assert.Nil(t, list)

	require.NoError(t, cache.Delete(ctx, order.ID))
	miss, err = cache.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, miss)
}
