package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusbay/marketplace/services/user-stats-service/internal/domain/userstats"
)

const statsColumns = `user_id, display_name, items_sold, revenue, items_bought, spent, last_trade_at, created_at, updated_at`

type UserStatsRepository struct {
	pool *pgxpool.Pool
}

func NewUserStatsRepository(pool *pgxpool.Pool) *UserStatsRepository {
	return &UserStatsRepository{pool: pool}
}

func (r *UserStatsRepository) UpsertUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID, displayName string) error {
	query := `
		INSERT INTO user_stats (user_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, userID, displayName); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// RecordSale adds one sale to the seller. A sale can arrive before the
// seller's user.created event, so the row is created on demand.
func (r *UserStatsRepository) RecordSale(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID, amount int64, at time.Time) error {
	query := `
		INSERT INTO user_stats (user_id, items_sold, revenue, last_trade_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			items_sold = user_stats.items_sold + 1,
			revenue = user_stats.revenue + EXCLUDED.revenue,
			last_trade_at = GREATEST(user_stats.last_trade_at, EXCLUDED.last_trade_at),
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, sellerID, amount, at); err != nil {
		return fmt.Errorf("failed to record sale: %w", err)
	}
	return nil
}

func (r *UserStatsRepository) RecordPurchase(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID, amount int64, at time.Time) error {
	query := `
		INSERT INTO user_stats (user_id, items_bought, spent, last_trade_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			items_bought = user_stats.items_bought + 1,
			spent = user_stats.spent + EXCLUDED.spent,
			last_trade_at = GREATEST(user_stats.last_trade_at, EXCLUDED.last_trade_at),
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, buyerID, amount, at); err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	return nil
}

func (r *UserStatsRepository) GetUserStats(ctx context.Context, userID uuid.UUID) (*userstats.UserStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user stats: %w", err)
	}
	stats, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[userstats.UserStats])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, userstats.ErrStatsNotFound
		}
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return stats, nil
}

func (r *UserStatsRepository) ListTopSellers(ctx context.Context, limit int) ([]*userstats.UserStats, error) {
	query := `
		SELECT ` + statsColumns + `
		FROM user_stats
		WHERE items_sold > 0
		ORDER BY revenue DESC, items_sold DESC, user_id
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top sellers: %w", err)
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[userstats.UserStats])
	if err != nil {
		return nil, fmt.Errorf("failed to scan top sellers: %w", err)
	}
	return stats, nil
}

func (r *UserStatsRepository) MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	query := `INSERT INTO processed_events (event_id) VALUES ($1)`
	if _, err := tx.Exec(ctx, query, eventID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *UserStatsRepository) IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`
	var exists bool
	if err := tx.QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists, nil
}
