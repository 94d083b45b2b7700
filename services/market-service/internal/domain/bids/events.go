package bids

import (
	"github.com/campusbay/marketplace/pkg/events"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

// Routing keys of the events written to the outbox.
const (
	EventBidPlaced   = "bid.placed"
	EventOfferPlaced = "offer.placed"
	EventBidDeclined = "bid.declined"
	EventItemSold    = events.ItemSoldRoutingKey
	EventItemClosed  = "item.closed"
)

func newOutboxEvent(eventType string, item *listings.Item, fill func(*events.PayloadBuilder)) (*events.OutboxEvent, error) {
	event := events.NewOutboxEvent(eventType, item.ID, nil)

	b := events.NewPayload().
		UUID("event_id", event.ID).
		UUID("item_id", item.ID).
		UUID("seller_id", item.SellerID).
		Time("occurred_at", event.CreatedAt)
	if fill != nil {
		fill(b)
	}

	payload, err := b.Encode()
	if err != nil {
		return nil, err
	}
	event.Payload = payload
	return event, nil
}

func bidEvent(eventType string, item *listings.Item, bid *Bid) (*events.OutboxEvent, error) {
	return newOutboxEvent(eventType, item, func(b *events.PayloadBuilder) {
		b.UUID("bid_id", bid.ID).
			UUID("bidder_id", bid.BidderID).
			Int64("amount", bid.Amount).
			String("status", string(bid.Status))
	})
}

func itemSoldEvent(item *listings.Item, chosen *Bid) (*events.OutboxEvent, error) {
	event := events.NewOutboxEvent(EventItemSold, item.ID, nil)
	payload, err := events.EncodeItemSold(&events.ItemSold{
		EventID:     event.ID,
		ItemID:      item.ID,
		BidID:       chosen.ID,
		SellerID:    item.SellerID,
		BuyerID:     chosen.BidderID,
		Amount:      chosen.Amount,
		ListingType: string(item.ListingType),
		OccurredAt:  event.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	event.Payload = payload
	return event, nil
}

func itemClosedEvent(item *listings.Item) (*events.OutboxEvent, error) {
	return newOutboxEvent(EventItemClosed, item, nil)
}
