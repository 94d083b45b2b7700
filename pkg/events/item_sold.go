package events

import (
	"time"

	"github.com/google/uuid"
)

// ItemSoldRoutingKey is the routing key item.sold messages are published with.
const ItemSoldRoutingKey = "item.sold"

// ItemSold is the body of an item.sold message. It is the one event shared
// across services, so its fields are pinned here.
type ItemSold struct {
	EventID     uuid.UUID
	ItemID      uuid.UUID
	BidID       uuid.UUID
	SellerID    uuid.UUID
	BuyerID     uuid.UUID
	Amount      int64
	ListingType string
	OccurredAt  time.Time
}

func EncodeItemSold(e *ItemSold) ([]byte, error) {
	return NewPayload().
		UUID("event_id", e.EventID).
		UUID("item_id", e.ItemID).
		UUID("bid_id", e.BidID).
		UUID("seller_id", e.SellerID).
		UUID("buyer_id", e.BuyerID).
		Int64("amount", e.Amount).
		String("listing_type", e.ListingType).
		Time("occurred_at", e.OccurredAt).
		Encode()
}

func DecodeItemSold(body []byte) (*ItemSold, error) {
	p, err := DecodePayload(body)
	if err != nil {
		return nil, err
	}

	var e ItemSold
	if e.EventID, err = p.UUID("event_id"); err != nil {
		return nil, err
	}
	if e.ItemID, err = p.UUID("item_id"); err != nil {
		return nil, err
	}
	if e.BidID, err = p.UUID("bid_id"); err != nil {
		return nil, err
	}
	if e.SellerID, err = p.UUID("seller_id"); err != nil {
		return nil, err
	}
	if e.BuyerID, err = p.UUID("buyer_id"); err != nil {
		return nil, err
	}
	if e.Amount, err = p.Int64("amount"); err != nil {
		return nil, err
	}
	if e.OccurredAt, err = p.Time("occurred_at"); err != nil {
		return nil, err
	}
	// Older producers did not send the listing type.
	e.ListingType, _ = p.String("listing_type")
	return &e, nil
}
