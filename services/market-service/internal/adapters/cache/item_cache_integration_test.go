//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbay/marketplace/pkg/testhelpers"
	"github.com/campusbay/marketplace/services/market-service/internal/adapters/cache"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

func TestRedisItemCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	client := testhelpers.NewTestRedis(t)
	c := cache.NewRedisItemCache(client, time.Minute)

	categoryID := int32(2)
	price := int64(1500)
	item := &listings.Item{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		Title:        "Desk lamp",
		Price:        price,
		CategoryID:   &categoryID,
		CategoryName: "Electronics",
		Status:       listings.ItemStatusActive,
		ListingType:  listings.ListingTypeFixed,
		BuyNowPrice:  &price,
		PickupCampus: "Livingston",
		Images: []listings.Image{
			{ID: uuid.New(), ImagePath: "lamp.jpg", IsPrimary: true},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	t.Run("miss returns nil", func(t *testing.T) {
		got, err := c.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, item))

		got, err := c.Get(ctx, item.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, item.Title, got.Title)
		assert.Equal(t, item.CategoryName, got.CategoryName)
		assert.Equal(t, *item.BuyNowPrice, *got.BuyNowPrice)
		assert.Equal(t, "lamp.jpg", got.PrimaryImage().ImagePath)
		assert.True(t, item.CreatedAt.Equal(got.CreatedAt))

		ttl, err := client.TTL(ctx, "market:item:"+item.ID.String()).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("invalidate removes the entry", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx, item.ID))

		got, err := c.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("fill racing an invalidation is dropped", func(t *testing.T) {
		itemKey := "market:item:" + item.ID.String()
		stale := *item
		sold := *item
		sold.Status = listings.ItemStatusSold

		// A reader loaded the active item, then a sale committed and invalidated.
		require.NoError(t, c.Invalidate(ctx, item.ID))
		require.NoError(t, c.Set(ctx, &stale))

		got, err := c.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Nil(t, got, "stale fill must not land after an invalidation")

		ttl, err := client.TTL(ctx, itemKey).Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, cache.FillGuardTTL)

		// Once the guard lapses, the next reader caches the fresh state.
		require.NoError(t, client.Del(ctx, itemKey).Err())
		require.NoError(t, c.Set(ctx, &sold))
		got, err = c.Get(ctx, item.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, listings.ItemStatusSold, got.Status)
	})

	t.Run("fill does not overwrite a cached entry", func(t *testing.T) {
		other := *item
		other.Title = "Different lamp"
		require.NoError(t, c.Set(ctx, &other))

		got, err := c.Get(ctx, item.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, item.Title, got.Title)
	})

	t.Run("corrupt entry is treated as a miss", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "market:item:"+item.ID.String(), "not json", time.Minute).Err())

		got, err := c.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
