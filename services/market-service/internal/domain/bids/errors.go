package bids

import (
	"errors"
	"fmt"

	"github.com/campusbay/marketplace/pkg/database"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

var (
	ErrNotFound          = listings.ErrNotFound
	ErrItemNotFound      = listings.ErrItemNotFound
	ErrBidNotFound       = fmt.Errorf("bid %w", ErrNotFound)
	ErrInvalidTransition = listings.ErrInvalidTransition
	ErrStorage           = listings.ErrStorage

	ErrListingTypeMismatch = fmt.Errorf("%w: operation does not apply to this listing type", ErrInvalidTransition)
	ErrNotSeller           = errors.New("only the seller can perform this action")
	ErrSelfBid             = errors.New("seller cannot bid on their own item")
	ErrAuctionClosed       = errors.New("listing is no longer active")
	ErrDuplicateOffer      = errors.New("an open offer from this bidder already exists")
	ErrInvalidBidAmount    = fmt.Errorf("%w: bid amount must be positive", listings.ErrInvalidInput)
	ErrBidTooLow           = errors.New("bid amount is below the minimum allowed")

	// ErrItemBusy means the item row stayed locked past the lock timeout. The
	// outcome of the other operation is unknown, so callers re-read and retry.
	ErrItemBusy = errors.New("item is locked by another operation")
)

// acceptedBidConstraint backs up "one accepted bid per item" in storage.
const acceptedBidConstraint = "uq_bids_one_accepted_per_item"

var domainErrors = []error{
	ErrNotFound,
	ErrInvalidTransition,
	ErrStorage,
	ErrNotSeller,
	ErrSelfBid,
	ErrAuctionClosed,
	ErrDuplicateOffer,
	listings.ErrInvalidInput,
	ErrBidTooLow,
	ErrItemBusy,
}

// classify leaves domain errors untouched and folds storage failures into the
// taxonomy: a lost race becomes ErrInvalidTransition, a lock wait that timed
// out ErrItemBusy, anything else ErrStorage.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}

	switch {
	case database.IsSerializationConflict(err):
		return fmt.Errorf("%w: lost a concurrent update: %w", ErrInvalidTransition, err)
	case database.IsUniqueViolation(err) && database.ConstraintName(err) == acceptedBidConstraint:
		return fmt.Errorf("%w: item already has an accepted bid: %w", ErrInvalidTransition, err)
	case database.IsLockTimeout(err):
		return fmt.Errorf("%w: %w", ErrItemBusy, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}

// resultLabel names an error class for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotSeller):
		return "not_seller"
	case errors.Is(err, ErrSelfBid):
		return "self_bid"
	case errors.Is(err, ErrAuctionClosed):
		return "auction_closed"
	case errors.Is(err, ErrDuplicateOffer):
		return "duplicate_offer"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrItemBusy):
		return "busy"
	case errors.Is(err, listings.ErrInvalidInput), errors.Is(err, ErrBidTooLow):
		return "invalid_argument"
	default:
		return "storage"
	}
}
