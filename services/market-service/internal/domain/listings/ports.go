package listings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ItemRepository defines the interface for item persistence
type ItemRepository interface {
	// CreateItem inserts the item and its images within a transaction
	CreateItem(ctx context.Context, tx pgx.Tx, item *Item) error

	// GetItemByID loads an item with its images, or ErrItemNotFound
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*Item, error)

	// ListActiveItems returns one page of active items, newest first, and the total match count
	ListActiveItems(ctx context.Context, query ListItemsQuery) ([]*Item, int, error)

	// ListItemsBySeller returns one page of a seller's items and the total match count
	ListItemsBySeller(ctx context.Context, query ListSellerItemsQuery) ([]*Item, int, error)

	// ListItemsByBuyer returns sold items whose chosen bid was placed by buyerID
	ListItemsByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*Item, error)

	// ActivePriceBounds returns the price span of active items; ok is false when there are none
	ActivePriceBounds(ctx context.Context) (bounds PriceBounds, ok bool, err error)
}

// CategoryRepository defines the interface for category lookups
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]*Category, error)
	GetCategoryByID(ctx context.Context, id int32) (*Category, error)
}

// ItemCache is a read-through cache for item details. Get returns nil, nil on a miss.
type ItemCache interface {
	Get(ctx context.Context, itemID uuid.UUID) (*Item, error)
	Set(ctx context.Context, item *Item) error
	Invalidate(ctx context.Context, itemID uuid.UUID) error
}
