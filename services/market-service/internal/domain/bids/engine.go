package bids

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/campusbay/marketplace/pkg/database"
	"github.com/campusbay/marketplace/pkg/events"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

const instrumentationName = "github.com/campusbay/marketplace/services/market-service/bids"

type PlaceBidCommand struct {
	ItemID   uuid.UUID
	BidderID uuid.UUID
	Amount   int64
}

// PlaceOfferCommand is a "buy now" request on a fixed-price listing.
type PlaceOfferCommand struct {
	ItemID   uuid.UUID
	BidderID uuid.UUID
}

// ResolveCommand targets one bid on an item on behalf of the acting user.
type ResolveCommand struct {
	ItemID  uuid.UUID
	BidID   uuid.UUID
	ActorID uuid.UUID
}

type CloseListingCommand struct {
	ItemID  uuid.UUID
	ActorID uuid.UUID
}

// Engine is the Resolution Engine. Every mutation locks the item row, re-reads
// the bids in the same transaction, applies the transition tables and writes
// the changed rows plus one outbox event before committing.
type Engine struct {
	txManager    database.TransactionManager
	items        ItemRepository
	bids         BidRepository
	outbox       OutboxRepository
	cache        CacheInvalidator
	minIncrement int64
	logger       *slog.Logger
	tracer       trace.Tracer
	transitions  metric.Int64Counter
}

// EngineOption customizes an Engine
type EngineOption func(*Engine)

// WithMinBidIncrement enforces that a bid beats the highest open bid by at
// least cents. Zero accepts any positive amount.
func WithMinBidIncrement(cents int64) EngineOption {
	return func(e *Engine) {
		e.minIncrement = cents
	}
}

// WithCacheInvalidator drops cached items after their status changes.
func WithCacheInvalidator(cache CacheInvalidator) EngineOption {
	return func(e *Engine) {
		e.cache = cache
	}
}

// NewEngine creates a new resolution engine
func NewEngine(
	txManager database.TransactionManager,
	items ItemRepository,
	bids BidRepository,
	outbox OutboxRepository,
	logger *slog.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		txManager: txManager,
		items:     items,
		bids:      bids,
		outbox:    outbox,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"market.engine.operations",
		metric.WithDescription("Resolution engine operations by result"),
	)
	if err != nil {
		logger.Warn("Failed to create engine counter", "error", err)
		counter = noop.Int64Counter{}
	}
	e.transitions = counter

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlaceBid appends a pending bid to an active auction.
func (e *Engine) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	var bid *Bid
	err := e.run(ctx, "PlaceBid", cmd.ItemID, func(ctx context.Context, tx pgx.Tx) error {
		if cmd.Amount <= 0 {
			return ErrInvalidBidAmount
		}

		item, err := e.items.GetItemByIDForUpdate(ctx, tx, cmd.ItemID)
		if err != nil {
			return err
		}
		if err := checkCanBid(item, cmd.BidderID, listings.ListingTypeAuction); err != nil {
			return err
		}

		if e.minIncrement > 0 {
			existing, err := e.bids.GetBidsByItemID(ctx, tx, item.ID)
			if err != nil {
				return err
			}
			if cmd.Amount < e.minimumBid(item, existing) {
				return ErrBidTooLow
			}
		}

		bid = newBid(item.ID, cmd.BidderID, cmd.Amount)
		if err := e.bids.SaveBid(ctx, tx, bid); err != nil {
			return fmt.Errorf("failed to save bid: %w", err)
		}
		return e.emit(ctx, tx, func() (*events.OutboxEvent, error) {
			return bidEvent(EventBidPlaced, item, bid)
		})
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// PlaceOffer records a pending purchase offer at the listing price.
func (e *Engine) PlaceOffer(ctx context.Context, cmd PlaceOfferCommand) (*Bid, error) {
	var bid *Bid
	err := e.run(ctx, "PlaceOffer", cmd.ItemID, func(ctx context.Context, tx pgx.Tx) error {
		item, err := e.items.GetItemByIDForUpdate(ctx, tx, cmd.ItemID)
		if err != nil {
			return err
		}
		if err := checkCanBid(item, cmd.BidderID, listings.ListingTypeFixed); err != nil {
			return err
		}

		existing, err := e.bids.GetBidsByItemID(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		for _, b := range existing {
			if b.BidderID == cmd.BidderID && b.Status.BlocksNewOffer() {
				return ErrDuplicateOffer
			}
		}

		bid = newBid(item.ID, cmd.BidderID, item.Price)
		if err := e.bids.SaveBid(ctx, tx, bid); err != nil {
			return fmt.Errorf("failed to save offer: %w", err)
		}
		return e.emit(ctx, tx, func() (*events.OutboxEvent, error) {
			return bidEvent(EventOfferPlaced, item, bid)
		})
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// AcceptBid sells an auction to the chosen bid and declines every other bid.
func (e *Engine) AcceptBid(ctx context.Context, cmd ResolveCommand) error {
	return e.runAndInvalidate(ctx, "AcceptBid", cmd.ItemID, func(ctx context.Context, tx pgx.Tx) error {
		item, existing, err := e.lockForSeller(ctx, tx, cmd.ItemID, cmd.ActorID)
		if err != nil {
			return err
		}
		if item.ListingType != listings.ListingTypeAuction {
			return ErrListingTypeMismatch
		}
		chosen, err := findBid(existing, cmd.BidID)
		if err != nil {
			return err
		}
		return e.sell(ctx, tx, item, existing, chosen)
	})
}

// AcceptOffer sells a fixed-price listing to the chosen offer; every other
// offer becomes not_accepted.
func (e *Engine) AcceptOffer(ctx context.Context, cmd ResolveCommand) error {
	return e.runAndInvalidate(ctx, "AcceptOffer", cmd.ItemID, func(ctx context.Context, tx pgx.Tx) error {
		item, existing, err := e.lockForSeller(ctx, tx, cmd.ItemID, cmd.ActorID)
		if err != nil {
			return err
		}
		if item.ListingType != listings.ListingTypeFixed {
			return ErrListingTypeMismatch
		}
		chosen, err := findBid(existing, cmd.BidID)
		if err != nil {
			return err
		}
		return e.sell(ctx, tx, item, existing, chosen)
	})
}

// AcceptHighestBid sells an auction to its highest open bid, earliest first on ties.
func (e *Engine) AcceptHighestBid(ctx context.Context, cmd CloseListingCommand) (*Bid, error) {
	var chosen *Bid
	err := e.runAndInvalidate(ctx, "AcceptHighestBid", cmd.ItemID, func(ctx context.Context, tx pgx.Tx) error {
		item, existing, err := e.lockForSeller(ctx, tx, cmd.ItemID, cmd.ActorID)
		if err != nil {
			return err
		}
		if item.ListingType != listings.ListingTypeAuction {
			return ErrListingTypeMismatch
		}
		chosen = SelectHighestBid(existing)
		if chosen == nil {
			return fmt.Errorf("%w: item has no open bids", ErrInvalidTransition)
		}
		return e.sell(ctx, tx, item, existing, chosen)
	})
	if err != nil {
		return nil, err
	}
	return chosen, nil
}

// DeclineBid rejects one pending bid. The item stays active.
func (e *Engine) DeclineBid(ctx context.Context, cmd ResolveCommand) error {
	return e.run(ctx, "DeclineBid", cmd.ItemID, func(ctx context.Context, tx pgx.Tx) error {
		item, existing, err := e.lockForSeller(ctx, tx, cmd.ItemID, cmd.ActorID)
		if err != nil {
			return err
		}
		bid, err := findBid(existing, cmd.BidID)
		if err != nil {
			return err
		}

		next, err := NextBidStatus(bid.Status, BidEventDecline, item.ListingType)
		if err != nil {
			return err
		}
		change := StatusChange{BidID: bid.ID, From: bid.Status, To: next}
		if err := e.bids.UpdateBidStatuses(ctx, tx, []StatusChange{change}); err != nil {
			return fmt.Errorf("failed to decline bid: %w", err)
		}
		bid.Status = next

		return e.emit(ctx, tx, func() (*events.OutboxEvent, error) {
			return bidEvent(EventBidDeclined, item, bid)
		})
	})
}

// CloseListing ends a listing without a sale. Bids keep their status.
func (e *Engine) CloseListing(ctx context.Context, cmd CloseListingCommand) error {
	return e.runAndInvalidate(ctx, "CloseListing", cmd.ItemID, func(ctx context.Context, tx pgx.Tx) error {
		item, err := e.items.GetItemByIDForUpdate(ctx, tx, cmd.ItemID)
		if err != nil {
			return err
		}
		if item.SellerID != cmd.ActorID {
			return ErrNotSeller
		}

		next, err := NextItemStatus(item.Status, ItemEventClose)
		if err != nil {
			return err
		}
		if err := e.items.UpdateStatus(ctx, tx, item.ID, next, nil); err != nil {
			return err
		}
		item.Status = next

		return e.emit(ctx, tx, func() (*events.OutboxEvent, error) {
			return itemClosedEvent(item)
		})
	})
}

// ListBids returns an item's bid history, highest then newest first.
func (e *Engine) ListBids(ctx context.Context, itemID uuid.UUID) ([]*Bid, error) {
	if _, err := e.items.GetItemByID(ctx, itemID); err != nil {
		return nil, classify(err)
	}
	bids, err := e.bids.ListBidsByItemID(ctx, itemID)
	if err != nil {
		return nil, classify(err)
	}
	return bids, nil
}

// ListBidderBids returns one entry per item the bidder bid on, with the
// outcome the bidder should see.
func (e *Engine) ListBidderBids(ctx context.Context, bidderID uuid.UUID) ([]*BidderBid, error) {
	bids, err := e.bids.ListBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, classify(err)
	}
	for _, b := range bids {
		b.Outcome = DeriveBidderOutcome(b.ItemStatus, b.Status, b.WonByBidder)
	}
	return bids, nil
}

// sell accepts chosen, moves every other bid to its lost label and marks the item sold.
func (e *Engine) sell(ctx context.Context, tx pgx.Tx, item *listings.Item, existing []*Bid, chosen *Bid) error {
	next, err := NextItemStatus(item.Status, ItemEventSell)
	if err != nil {
		return err
	}

	changes := make([]StatusChange, 0, len(existing))
	for _, b := range existing {
		event := BidEventLose
		if b.ID == chosen.ID {
			event = BidEventAccept
		}
		to, err := NextBidStatus(b.Status, event, item.ListingType)
		if err != nil {
			return err
		}
		if to != b.Status {
			changes = append(changes, StatusChange{BidID: b.ID, From: b.Status, To: to})
		}
	}

	if err := e.bids.UpdateBidStatuses(ctx, tx, changes); err != nil {
		return fmt.Errorf("failed to update bid statuses: %w", err)
	}
	if err := e.items.UpdateStatus(ctx, tx, item.ID, next, &chosen.ID); err != nil {
		return err
	}
	chosen.Status = BidStatusAccepted
	item.Status = next
	item.ChosenBidID = &chosen.ID

	if err := e.emit(ctx, tx, func() (*events.OutboxEvent, error) {
		return itemSoldEvent(item, chosen)
	}); err != nil {
		return err
	}
	return nil
}

// lockForSeller locks the item, checks the actor owns it and that it is still
// active, and loads its bids.
func (e *Engine) lockForSeller(ctx context.Context, tx pgx.Tx, itemID, actorID uuid.UUID) (*listings.Item, []*Bid, error) {
	item, err := e.items.GetItemByIDForUpdate(ctx, tx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.SellerID != actorID {
		return nil, nil, ErrNotSeller
	}
	if !item.IsActive() {
		return nil, nil, fmt.Errorf("%w: item is %s", ErrInvalidTransition, item.Status)
	}

	existing, err := e.bids.GetBidsByItemID(ctx, tx, item.ID)
	if err != nil {
		return nil, nil, err
	}
	return item, existing, nil
}

func (e *Engine) minimumBid(item *listings.Item, existing []*Bid) int64 {
	minimum := item.Price
	if highest := SelectHighestBid(existing); highest != nil && highest.Amount+e.minIncrement > minimum {
		minimum = highest.Amount + e.minIncrement
	}
	return minimum
}

func (e *Engine) emit(ctx context.Context, tx pgx.Tx, build func() (*events.OutboxEvent, error)) error {
	event, err := build()
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}
	if err := e.outbox.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

type txFunc func(ctx context.Context, tx pgx.Tx) error

// run executes fn in one transaction under a span and records the result.
// Any error rolls the whole transaction back.
func (e *Engine) run(ctx context.Context, op string, itemID uuid.UUID, fn txFunc) (err error) {
	ctx, span := e.tracer.Start(ctx, "bids.Engine."+op, trace.WithAttributes(
		attribute.String("item.id", itemID.String()),
	))
	start := time.Now()
	defer func() {
		e.record(ctx, span, op, itemID, err, time.Since(start))
		span.End()
	}()

	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrStorage, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// runAndInvalidate is run for operations that change the item row; cached
// copies are dropped once the change is committed.
func (e *Engine) runAndInvalidate(ctx context.Context, op string, itemID uuid.UUID, fn txFunc) error {
	if err := e.run(ctx, op, itemID, fn); err != nil {
		return err
	}
	e.invalidate(ctx, itemID)
	return nil
}

func (e *Engine) invalidate(ctx context.Context, itemID uuid.UUID) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, itemID); err != nil {
		e.logger.Warn("Failed to invalidate item cache", "item_id", itemID, "error", err)
	}
}

func (e *Engine) record(ctx context.Context, span trace.Span, op string, itemID uuid.UUID, err error, elapsed time.Duration) {
	result := resultLabel(err)
	e.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("result", result),
	))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		if result == "storage" {
			e.logger.Error("Engine operation failed", "operation", op, "item_id", itemID, "error", err)
		} else {
			e.logger.Debug("Engine operation rejected", "operation", op, "item_id", itemID, "result", result)
		}
		return
	}
	e.logger.Info("Engine operation completed", "operation", op, "item_id", itemID, "duration", elapsed)
}

func checkCanBid(item *listings.Item, bidderID uuid.UUID, want listings.ListingType) error {
	if !item.IsActive() {
		return ErrAuctionClosed
	}
	if item.SellerID == bidderID {
		return ErrSelfBid
	}
	if item.ListingType != want {
		return ErrListingTypeMismatch
	}
	return nil
}

func findBid(bids []*Bid, bidID uuid.UUID) (*Bid, error) {
	for _, b := range bids {
		if b.ID == bidID {
			return b, nil
		}
	}
	return nil, ErrBidNotFound
}

func newBid(itemID, bidderID uuid.UUID, amount int64) *Bid {
	return &Bid{
		ID:       uuid.New(),
		ItemID:   itemID,
		BidderID: bidderID,
		Amount:   amount,
		Status:   BidStatusPending,
		PlacedAt: time.Now().UTC(),
	}
}
