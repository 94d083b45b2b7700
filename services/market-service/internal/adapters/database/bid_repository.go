package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/campusbay/marketplace/pkg/database"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/bids"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

// PostgresBidRepository implements bids.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid saves a bid within a transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (id, item_id, bidder_id, amount, status, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ItemID,
		bid.BidderID,
		bid.Amount,
		bid.Status,
		bid.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBidsByItemID reads all bids on an item inside tx
func (r *PostgresBidRepository) GetBidsByItemID(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) ([]*bids.Bid, error) {
	return r.listByItem(ctx, tx, itemID)
}

// ListBidsByItemID reads all bids on an item outside any transaction
func (r *PostgresBidRepository) ListBidsByItemID(ctx context.Context, itemID uuid.UUID) ([]*bids.Bid, error) {
	return r.listByItem(ctx, r.pool, itemID)
}

func (r *PostgresBidRepository) listByItem(ctx context.Context, db pkgdb.DBTX, itemID uuid.UUID) ([]*bids.Bid, error) {
	query := `
		SELECT id, item_id, bidder_id, amount, status, placed_at
		FROM bids
		WHERE item_id = $1
		ORDER BY amount DESC, placed_at DESC
	`
	rows, err := db.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	result := []*bids.Bid{}
	for rows.Next() {
		var bid bids.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.ItemID,
			&bid.BidderID,
			&bid.Amount,
			&bid.Status,
			&bid.PlacedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}

// UpdateBidStatuses applies every change in one batch. Each update is guarded
// by the status it was computed from.
func (r *PostgresBidRepository) UpdateBidStatuses(ctx context.Context, tx pgx.Tx, changes []bids.StatusChange) error {
	if len(changes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range changes {
		batch.Queue(`UPDATE bids SET status = $1 WHERE id = $2 AND status = $3`, c.To, c.BidID, c.From)
	}

	br := tx.SendBatch(ctx, batch)
	for _, c := range changes {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to update bid %s: %w", c.BidID, err)
		}
		if tag.RowsAffected() == 0 {
			_ = br.Close()
			return fmt.Errorf("%w: bid %s is no longer %s", listings.ErrInvalidTransition, c.BidID, c.From)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to update bid statuses: %w", err)
	}
	return nil
}

// ListBidsByBidder returns the bidder's highest, newest bid per item, most recent first
func (r *PostgresBidRepository) ListBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]*bids.BidderBid, error) {
	query := `
		WITH mine AS (
			SELECT DISTINCT ON (b.item_id)
				b.id, b.item_id, b.bidder_id, b.amount, b.status, b.placed_at,
				i.title, i.status AS item_status, i.listing_type,
				COALESCE((
					SELECT ii.image_path FROM item_images ii
					WHERE ii.item_id = i.id
					ORDER BY ii.is_primary DESC, ii.sort_order ASC, ii.created_at ASC
					LIMIT 1
				), '') AS image_path,
				EXISTS (
					SELECT 1 FROM bids w
					WHERE w.id = i.chosen_bid_id AND w.bidder_id = b.bidder_id
				) AS won
			FROM bids b
			JOIN items i ON i.id = b.item_id
			WHERE b.bidder_id = $1
			ORDER BY b.item_id, b.amount DESC, b.placed_at DESC
		)
		SELECT id, item_id, bidder_id, amount, status, placed_at, title, item_status, listing_type, image_path, won
		FROM mine
		ORDER BY placed_at DESC
	`
	rows, err := r.pool.Query(ctx, query, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bidder bids: %w", err)
	}
	defer rows.Close()

	result := []*bids.BidderBid{}
	for rows.Next() {
		var b bids.BidderBid
		if err := rows.Scan(
			&b.ID,
			&b.ItemID,
			&b.BidderID,
			&b.Amount,
			&b.Status,
			&b.PlacedAt,
			&b.ItemTitle,
			&b.ItemStatus,
			&b.ListingType,
			&b.ImagePath,
			&b.WonByBidder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bidder bid: %w", err)
		}
		result = append(result, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bidder bids: %w", err)
	}
	return result, nil
}
