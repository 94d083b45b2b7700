//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgdb "github.com/campusbay/marketplace/pkg/database"
	"github.com/campusbay/marketplace/pkg/testhelpers"
	"github.com/campusbay/marketplace/services/market-service/internal/adapters/database"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/bids"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

func insertItem(t *testing.T, pool *pgxpool.Pool, repo *database.PostgresItemRepository, mutate func(*listings.Item)) *listings.Item {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	item := &listings.Item{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		Title:        "Bike",
		Description:  "Road bike",
		Price:        1000,
		Status:       listings.ItemStatusActive,
		ListingType:  listings.ListingTypeAuction,
		PickupCampus: "Busch",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if mutate != nil {
		mutate(item)
	}
	for i := range item.Images {
		item.Images[i].ItemID = item.ID
	}

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	require.NoError(t, repo.CreateItem(ctx, tx, item))
	require.NoError(t, tx.Commit(ctx))
	return item
}

func TestItemRepository_Queries(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	pool := testDB.Pool
	ctx := context.Background()
	repo := database.NewPostgresItemRepository(pool)
	categories := database.NewPostgresCategoryRepository(pool)

	t.Run("categories are seeded", func(t *testing.T) {
		all, err := categories.ListCategories(ctx)
		require.NoError(t, err)
		names := make([]string, 0, len(all))
		for _, c := range all {
			names = append(names, c.Name)
		}
		assert.ElementsMatch(t, []string{"Books", "Electronics", "Furniture", "Clothing", "Other"}, names)

		_, err = categories.GetCategoryByID(ctx, 9999)
		assert.ErrorIs(t, err, listings.ErrCategoryNotFound)
	})

	t.Run("empty store has no price bounds", func(t *testing.T) {
		_, ok, err := repo.ActivePriceBounds(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	seller := uuid.New()
	books := int32(1)
	cheap := insertItem(t, pool, repo, func(i *listings.Item) {
		i.SellerID = seller
		i.Price = 300
		i.CategoryID = &books
		i.PickupCampus = "College Ave"
		i.Images = []listings.Image{
			{ID: uuid.New(), ImagePath: "b.jpg", SortOrder: 1, CreatedAt: time.Now()},
			{ID: uuid.New(), ImagePath: "a.jpg", IsPrimary: true, SortOrder: 0, CreatedAt: time.Now()},
		}
	})
	pricey := insertItem(t, pool, repo, func(i *listings.Item) {
		i.SellerID = seller
		i.Price = 9000
		i.ListingType = listings.ListingTypeFixed
		i.BuyNowPrice = &i.Price
	})
	closed := insertItem(t, pool, repo, func(i *listings.Item) {
		i.SellerID = seller
		i.Price = 50
	})

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, tx, closed.ID, listings.ItemStatusClosed, nil))
	require.NoError(t, tx.Commit(ctx))

	t.Run("get item loads category and ordered images", func(t *testing.T) {
		got, err := repo.GetItemByID(ctx, cheap.ID)
		require.NoError(t, err)
		assert.Equal(t, "Books", got.CategoryName)
		require.Len(t, got.Images, 2)
		assert.Equal(t, "a.jpg", got.Images[0].ImagePath)
		assert.Equal(t, "a.jpg", got.PrimaryImage().ImagePath)

		_, err = repo.GetItemByID(ctx, uuid.New())
		assert.ErrorIs(t, err, listings.ErrItemNotFound)
	})

	t.Run("active feed filters", func(t *testing.T) {
		all, total, err := repo.ListActiveItems(ctx, listings.ListItemsQuery{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, all, 2)
		assert.Equal(t, pricey.ID, all[0].ID, "newest first")

		minPrice := int64(1000)
		expensive, total, err := repo.ListActiveItems(ctx, listings.ListItemsQuery{
			Filters: listings.ItemFilters{MinPrice: &minPrice}, Limit: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, pricey.ID, expensive[0].ID)

		byCampus, _, err := repo.ListActiveItems(ctx, listings.ListItemsQuery{
			Filters: listings.ItemFilters{Campus: "College Ave", CategoryID: &books}, Limit: 10,
		})
		require.NoError(t, err)
		require.Len(t, byCampus, 1)
		assert.Equal(t, cheap.ID, byCampus[0].ID)

		fixed, _, err := repo.ListActiveItems(ctx, listings.ListItemsQuery{
			Filters: listings.ItemFilters{ListingType: listings.ListingTypeFixed}, Limit: 10,
		})
		require.NoError(t, err)
		require.Len(t, fixed, 1)
		assert.Equal(t, pricey.ID, fixed[0].ID)

		page, total, err := repo.ListActiveItems(ctx, listings.ListItemsQuery{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, page, 1)
		assert.Equal(t, cheap.ID, page[0].ID)
	})

	t.Run("seller filter closed includes sold", func(t *testing.T) {
		active, total, err := repo.ListItemsBySeller(ctx, listings.ListSellerItemsQuery{
			SellerID: seller, Status: listings.SellerStatusActive, Limit: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, active, 2)

		done, total, err := repo.ListItemsBySeller(ctx, listings.ListSellerItemsQuery{
			SellerID: seller, Status: listings.SellerStatusClosed, Limit: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, closed.ID, done[0].ID)

		_, total, err = repo.ListItemsBySeller(ctx, listings.ListSellerItemsQuery{
			SellerID: seller, Status: listings.SellerStatusAll, Limit: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
	})

	t.Run("price bounds cover active items only", func(t *testing.T) {
		bounds, ok, err := repo.ActivePriceBounds(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, listings.PriceBounds{Min: 300, Max: 9000}, bounds)
	})

	t.Run("status update only applies to active items", func(t *testing.T) {
		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()

		err = repo.UpdateStatus(ctx, tx, closed.ID, listings.ItemStatusSold, nil)
		assert.ErrorIs(t, err, listings.ErrInvalidTransition)
	})

	t.Run("second primary image violates the partial index", func(t *testing.T) {
		_, err := pool.Exec(ctx,
			`INSERT INTO item_images (id, item_id, image_path, is_primary) VALUES ($1, $2, 'c.jpg', TRUE)`,
			uuid.New(), cheap.ID)
		assert.True(t, pkgdb.IsUniqueViolation(err))
	})
}

func TestBidRepository_StatusGuards(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	pool := testDB.Pool
	ctx := context.Background()
	items := database.NewPostgresItemRepository(pool)
	repo := database.NewPostgresBidRepository(pool)

	item := insertItem(t, pool, items, nil)
	newBid := func(amount int64) *bids.Bid {
		b := &bids.Bid{
			ID: uuid.New(), ItemID: item.ID, BidderID: uuid.New(),
			Amount: amount, Status: bids.BidStatusPending, PlacedAt: time.Now().UTC(),
		}
		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.SaveBid(ctx, tx, b))
		require.NoError(t, tx.Commit(ctx))
		return b
	}
	first, second := newBid(100), newBid(200)

	t.Run("stale from-status is rejected", func(t *testing.T) {
		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()

		err = repo.UpdateBidStatuses(ctx, tx, []bids.StatusChange{
			{BidID: first.ID, From: bids.BidStatusDeclined, To: bids.BidStatusAccepted},
		})
		assert.ErrorIs(t, err, listings.ErrInvalidTransition)
	})

	t.Run("two accepted bids violate the unique index", func(t *testing.T) {
		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()

		err = repo.UpdateBidStatuses(ctx, tx, []bids.StatusChange{
			{BidID: first.ID, From: bids.BidStatusPending, To: bids.BidStatusAccepted},
			{BidID: second.ID, From: bids.BidStatusPending, To: bids.BidStatusAccepted},
		})
		require.Error(t, err)
		assert.True(t, pkgdb.IsUniqueViolation(err))
		assert.Equal(t, "uq_bids_one_accepted_per_item", pkgdb.ConstraintName(err))
	})

	t.Run("bid history is highest first", func(t *testing.T) {
		history, err := repo.ListBidsByItemID(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, second.ID, history[0].ID)
		assert.Equal(t, bids.BidStatusPending, history[0].Status)
	})

	t.Run("sold requires a chosen bid", func(t *testing.T) {
		_, err := pool.Exec(ctx, `UPDATE items SET status = 'sold' WHERE id = $1`, item.ID)
		assert.True(t, pkgdb.IsCheckViolation(err))
	})
}
