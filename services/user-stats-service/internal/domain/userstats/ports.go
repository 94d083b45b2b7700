package userstats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository interface {
	// UpsertUser creates the stats row or refreshes its display name.
	UpsertUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID, displayName string) error
	RecordSale(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID, amount int64, at time.Time) error
	RecordPurchase(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID, amount int64, at time.Time) error
	GetUserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error)
	ListTopSellers(ctx context.Context, limit int) ([]*UserStats, error)

	IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error)
	MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error
}
