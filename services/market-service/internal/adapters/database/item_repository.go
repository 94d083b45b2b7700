package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/campusbay/marketplace/pkg/database"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

const itemColumns = `
	i.id, i.seller_id, i.title, i.description, i.price, i.category_id, COALESCE(c.name, ''),
	i.status, i.listing_type, i.buy_now_price, i.pickup_location, i.pickup_campus,
	i.chosen_bid_id, i.created_at, i.updated_at`

const itemFrom = `
	FROM items i
	LEFT JOIN categories c ON c.id = i.category_id`

// PostgresItemRepository implements listings.ItemRepository and bids.ItemRepository using pgx
type PostgresItemRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresItemRepository creates a new PostgreSQL item repository
func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// CreateItem inserts the item row and queues its images in one batch
func (r *PostgresItemRepository) CreateItem(ctx context.Context, tx pgx.Tx, item *listings.Item) error {
	query := `
		INSERT INTO items (
			id, seller_id, title, description, price, category_id, status, listing_type,
			buy_now_price, pickup_location, pickup_campus, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.Exec(ctx, query,
		item.ID,
		item.SellerID,
		item.Title,
		item.Description,
		item.Price,
		item.CategoryID,
		item.Status,
		item.ListingType,
		item.BuyNowPrice,
		item.PickupLocation,
		item.PickupCampus,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	if len(item.Images) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, img := range item.Images {
		batch.Queue(`
			INSERT INTO item_images (id, item_id, image_path, is_primary, sort_order, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			img.ID, img.ItemID, img.ImagePath, img.IsPrimary, img.SortOrder, img.CreatedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range item.Images {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to insert item image: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert item images: %w", err)
	}
	return nil
}

// GetItemByID retrieves an item with its images (non-transactional read)
func (r *PostgresItemRepository) GetItemByID(ctx context.Context, itemID uuid.UUID) (*listings.Item, error) {
	item, err := r.getItemByID(ctx, r.pool, itemID, false)
	if err != nil {
		return nil, err
	}
	if err := r.attachImages(ctx, r.pool, []*listings.Item{item}); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItemByIDForUpdate retrieves an item by its ID and locks the row until tx ends.
// Images are not loaded; the engine never needs them.
func (r *PostgresItemRepository) GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*listings.Item, error) {
	return r.getItemByID(ctx, tx, itemID, true)
}

// getItemByID is the internal implementation that works with any DBTX
func (r *PostgresItemRepository) getItemByID(ctx context.Context, db pkgdb.DBTX, itemID uuid.UUID, forUpdate bool) (*listings.Item, error) {
	query := `SELECT ` + itemColumns + itemFrom + ` WHERE i.id = $1`
	if forUpdate {
		// The category side of the outer join cannot be locked
		query += " FOR UPDATE OF i"
	}

	item, err := scanItem(db.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, listings.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// UpdateStatus moves an active item to status. Zero affected rows means
// the item already left active.
func (r *PostgresItemRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, status listings.ItemStatus, chosenBidID *uuid.UUID) error {
	query := `
		UPDATE items
		SET status = $1, chosen_bid_id = COALESCE($2, chosen_bid_id), updated_at = NOW()
		WHERE id = $3 AND status = 'active'
	`
	result, err := tx.Exec(ctx, query, status, chosenBidID, itemID)
	if err != nil {
		return fmt.Errorf("failed to update item status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %s is not active", listings.ErrInvalidTransition, itemID)
	}
	return nil
}

// ListActiveItems returns one page of active items, newest first, and the total match count
func (r *PostgresItemRepository) ListActiveItems(ctx context.Context, q listings.ListItemsQuery) ([]*listings.Item, int, error) {
	where := []string{"i.status = 'active'"}
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	f := q.Filters
	if f.CategoryID != nil {
		add("i.category_id = $%d", *f.CategoryID)
	}
	if f.Campus != "" {
		add("i.pickup_campus = $%d", f.Campus)
	}
	if f.ListingType != "" {
		add("i.listing_type = $%d", f.ListingType)
	}
	if f.MinPrice != nil {
		add("i.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("i.price <= $%d", *f.MaxPrice)
	}

	return r.listPage(ctx, strings.Join(where, " AND "), args, q.Limit, q.Offset)
}

// ListItemsBySeller returns one page of a seller's items. The closed filter includes sold items.
func (r *PostgresItemRepository) ListItemsBySeller(ctx context.Context, q listings.ListSellerItemsQuery) ([]*listings.Item, int, error) {
	where := "i.seller_id = $1"
	switch q.Status {
	case listings.SellerStatusActive:
		where += " AND i.status = 'active'"
	case listings.SellerStatusClosed:
		where += " AND i.status IN ('closed', 'sold')"
	}
	return r.listPage(ctx, where, []any{q.SellerID}, q.Limit, q.Offset)
}

func (r *PostgresItemRepository) listPage(ctx context.Context, where string, args []any, limit, offset int) ([]*listings.Item, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM items i WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	pageArgs := append(append([]any{}, args...), limit, offset)
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY i.created_at DESC, i.id LIMIT $%d OFFSET $%d`,
		itemColumns, itemFrom, where, len(args)+1, len(args)+2)

	items, err := r.queryItems(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListItemsByBuyer returns sold items whose chosen bid was placed by buyerID
func (r *PostgresItemRepository) ListItemsByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*listings.Item, error) {
	query := `SELECT ` + itemColumns + itemFrom + `
		JOIN bids b ON b.id = i.chosen_bid_id
		WHERE b.bidder_id = $1 AND i.status = 'sold'
		ORDER BY i.updated_at DESC`
	return r.queryItems(ctx, query, buyerID)
}

// ActivePriceBounds returns the min and max price over active items
func (r *PostgresItemRepository) ActivePriceBounds(ctx context.Context) (listings.PriceBounds, bool, error) {
	var lo, hi *int64
	err := r.pool.QueryRow(ctx, `SELECT MIN(price), MAX(price) FROM items WHERE status = 'active'`).Scan(&lo, &hi)
	if err != nil {
		return listings.PriceBounds{}, false, fmt.Errorf("failed to get price bounds: %w", err)
	}
	if lo == nil || hi == nil {
		return listings.PriceBounds{}, false, nil
	}
	return listings.PriceBounds{Min: *lo, Max: *hi}, true, nil
}

func (r *PostgresItemRepository) queryItems(ctx context.Context, query string, args ...any) ([]*listings.Item, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	result := []*listings.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	if err := r.attachImages(ctx, r.pool, result); err != nil {
		return nil, err
	}
	return result, nil
}

// attachImages loads images for all items in one query, in display order.
func (r *PostgresItemRepository) attachImages(ctx context.Context, db pkgdb.DBTX, items []*listings.Item) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*listings.Item, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		byID[item.ID] = item
		ids = append(ids, item.ID)
	}

	query := `
		SELECT id, item_id, image_path, is_primary, sort_order, created_at
		FROM item_images
		WHERE item_id = ANY($1)
		ORDER BY item_id, is_primary DESC, sort_order ASC, created_at ASC
	`
	rows, err := db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to query item images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img listings.Image
		if err := rows.Scan(&img.ID, &img.ItemID, &img.ImagePath, &img.IsPrimary, &img.SortOrder, &img.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan item image: %w", err)
		}
		if item, ok := byID[img.ItemID]; ok {
			item.Images = append(item.Images, img)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating item images: %w", err)
	}
	return nil
}

func scanItem(row pgx.Row) (*listings.Item, error) {
	var item listings.Item
	err := row.Scan(
		&item.ID,
		&item.SellerID,
		&item.Title,
		&item.Description,
		&item.Price,
		&item.CategoryID,
		&item.CategoryName,
		&item.Status,
		&item.ListingType,
		&item.BuyNowPrice,
		&item.PickupLocation,
		&item.PickupCampus,
		&item.ChosenBidID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
