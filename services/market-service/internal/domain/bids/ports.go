package bids

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusbay/marketplace/pkg/events"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

// ItemRepository is the slice of the Listing Store the engine reads and writes
type ItemRepository interface {
	// GetItemByID is a read-committed read used by queries
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*listings.Item, error)

	// GetItemByIDForUpdate locks the item row until tx ends.
	// Every mutating operation takes this lock first.
	GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*listings.Item, error)

	// UpdateStatus moves an active item to status and records chosenBidID.
	// It returns ErrInvalidTransition when the item is no longer active.
	UpdateStatus(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, status listings.ItemStatus, chosenBidID *uuid.UUID) error
}

// BidRepository defines the interface for bid persistence
type BidRepository interface {
	// SaveBid saves a bid within a transaction
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// GetBidsByItemID reads every bid on an item inside tx, highest then newest first
	GetBidsByItemID(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) ([]*Bid, error)

	// UpdateBidStatuses writes all changes in one round trip
	UpdateBidStatuses(ctx context.Context, tx pgx.Tx, changes []StatusChange) error

	// ListBidsByItemID is the read-committed bid history, highest then newest first
	ListBidsByItemID(ctx context.Context, itemID uuid.UUID) ([]*Bid, error)

	// ListBidsByBidder returns the bidder's most relevant bid per item, newest first
	ListBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]*BidderBid, error)
}

// OutboxRepository defines the interface for outbox event persistence
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// CacheInvalidator drops cached item details after a status change commits.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, itemID uuid.UUID) error
}
