package bids

import (
	"fmt"

	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

// ItemEvent drives an item out of the active state.
type ItemEvent string

const (
	ItemEventClose ItemEvent = "close"
	ItemEventSell  ItemEvent = "sell"
)

// NextItemStatus is the item transition table. closed and sold are terminal.
func NextItemStatus(from listings.ItemStatus, event ItemEvent) (listings.ItemStatus, error) {
	if from == listings.ItemStatusActive {
		switch event {
		case ItemEventClose:
			return listings.ItemStatusClosed, nil
		case ItemEventSell:
			return listings.ItemStatusSold, nil
		}
	}
	return from, fmt.Errorf("%w: cannot %s an item that is %s", ErrInvalidTransition, event, from)
}

// BidEvent is applied to one bid during a resolution.
type BidEvent string

const (
	BidEventAccept  BidEvent = "accept"
	BidEventDecline BidEvent = "decline"
	// BidEventLose marks a bid that lost because another one was accepted.
	BidEventLose BidEvent = "lose"
)

// LostLabel is the stored label for a losing bid on the given listing type.
func LostLabel(listingType listings.ListingType) BidStatus {
	if listingType == listings.ListingTypeFixed {
		return BidStatusNotAccepted
	}
	return BidStatusDeclined
}

// NextBidStatus is the bid transition table.
func NextBidStatus(from BidStatus, event BidEvent, listingType listings.ListingType) (BidStatus, error) {
	outcome := from.Outcome()

	switch event {
	case BidEventAccept:
		if from == BidStatusPending {
			return BidStatusAccepted, nil
		}
	case BidEventDecline:
		if from == BidStatusPending {
			return BidStatusDeclined, nil
		}
	case BidEventLose:
		if outcome == OutcomeOpen {
			return LostLabel(listingType), nil
		}
		if outcome == OutcomeLost {
			// A bid the seller already declined keeps its label.
			if from == BidStatusDeclined {
				return from, nil
			}
			return LostLabel(listingType), nil
		}
	}
	return from, fmt.Errorf("%w: cannot %s a bid that is %s", ErrInvalidTransition, event, from)
}
