package bids

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

// BidStatus is the label stored on a bid. Auctions and fixed-price listings use
// different labels for a losing bid; see Outcome for the unified view.
type BidStatus string

const (
	BidStatusPending     BidStatus = "pending"
	BidStatusAccepted    BidStatus = "accepted"
	BidStatusDeclined    BidStatus = "declined"
	BidStatusNotAccepted BidStatus = "not_accepted"
)

func (s BidStatus) Valid() bool {
	switch s {
	case BidStatusPending, BidStatusAccepted, BidStatusDeclined, BidStatusNotAccepted:
		return true
	}
	return false
}

// Outcome collapses the stored labels into the three states the engine reasons about.
type Outcome int

const (
	OutcomeOpen Outcome = iota
	OutcomeWon
	OutcomeLost
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOpen:
		return "open"
	case OutcomeWon:
		return "won"
	case OutcomeLost:
		return "lost"
	}
	return "unknown"
}

func (s BidStatus) Outcome() Outcome {
	switch s {
	case BidStatusAccepted:
		return OutcomeWon
	case BidStatusDeclined, BidStatusNotAccepted:
		return OutcomeLost
	default:
		return OutcomeOpen
	}
}

// BlocksNewOffer reports whether a bidder holding a bid in this status may not
// submit another offer on the same fixed-price listing.
func (s BidStatus) BlocksNewOffer() bool {
	return s == BidStatusPending || s == BidStatusNotAccepted
}

// Bid is an auction bid or a fixed-price purchase offer
type Bid struct {
	ID       uuid.UUID `db:"id"`
	ItemID   uuid.UUID `db:"item_id"`
	BidderID uuid.UUID `db:"bidder_id"`
	Amount   int64     `db:"amount"`
	Status   BidStatus `db:"status"`
	PlacedAt time.Time `db:"placed_at"`
}

// StatusChange is one bid row rewritten by a resolution.
type StatusChange struct {
	BidID uuid.UUID
	From  BidStatus
	To    BidStatus
}

// BidderOutcome is what a bidder sees next to each item they bid on.
type BidderOutcome string

const (
	BidderOutcomeAwaiting     BidderOutcome = "awaiting"
	BidderOutcomeWon          BidderOutcome = "won"
	BidderOutcomeLostToOther  BidderOutcome = "lost_to_other"
	BidderOutcomeDeclined     BidderOutcome = "declined"
	BidderOutcomeClosedNoSale BidderOutcome = "closed_no_sale"
)

// BidderBid is a bidder's most relevant bid on one item: their highest, newest first.
type BidderBid struct {
	Bid
	ItemTitle   string
	ItemStatus  listings.ItemStatus
	ListingType listings.ListingType
	ImagePath   string
	// WonByBidder is true when the item's chosen bid belongs to this bidder,
	// which may be a different bid than the one shown.
	WonByBidder bool
	Outcome     BidderOutcome
}

// DeriveBidderOutcome maps item and bid state to the bidder-facing outcome.
func DeriveBidderOutcome(itemStatus listings.ItemStatus, bidStatus BidStatus, wonByBidder bool) BidderOutcome {
	switch itemStatus {
	case listings.ItemStatusSold:
		if wonByBidder || bidStatus == BidStatusAccepted {
			return BidderOutcomeWon
		}
		return BidderOutcomeLostToOther
	case listings.ItemStatusClosed:
		return BidderOutcomeClosedNoSale
	default:
		if bidStatus == BidStatusDeclined {
			return BidderOutcomeDeclined
		}
		return BidderOutcomeAwaiting
	}
}

// SelectHighestBid returns the open bid with the largest amount, earliest first
// on ties, or nil when no bid is open.
func SelectHighestBid(bids []*Bid) *Bid {
	var best *Bid
	for _, b := range bids {
		if b.Status.Outcome() != OutcomeOpen {
			continue
		}
		if best == nil ||
			b.Amount > best.Amount ||
			(b.Amount == best.Amount && b.PlacedAt.Before(best.PlacedAt)) {
			best = b
		}
	}
	return best
}
