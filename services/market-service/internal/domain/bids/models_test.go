package bids

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

func TestSelectHighestBid(t *testing.T) {
	t0 := time.Now()
	early := &Bid{ID: uuid.New(), Amount: 1500, Status: BidStatusPending, PlacedAt: t0}
	late := &Bid{ID: uuid.New(), Amount: 1500, Status: BidStatusPending, PlacedAt: t0.Add(time.Minute)}
	low := &Bid{ID: uuid.New(), Amount: 1000, Status: BidStatusPending, PlacedAt: t0}
	declined := &Bid{ID: uuid.New(), Amount: 9000, Status: BidStatusDeclined, PlacedAt: t0}

	assert.Nil(t, SelectHighestBid(nil))
	assert.Nil(t, SelectHighestBid([]*Bid{declined}))
	assert.Equal(t, early, SelectHighestBid([]*Bid{low, late, early, declined}))
	assert.Equal(t, early, SelectHighestBid([]*Bid{early, late}))
}

func TestDeriveBidderOutcome(t *testing.T) {
	tests := []struct {
		name       string
		itemStatus listings.ItemStatus
		bidStatus  BidStatus
		won        bool
		want       BidderOutcome
	}{
		{"sold to me", listings.ItemStatusSold, BidStatusAccepted, true, BidderOutcomeWon},
		{"sold to my other bid", listings.ItemStatusSold, BidStatusNotAccepted, true, BidderOutcomeWon},
		{"sold to someone else", listings.ItemStatusSold, BidStatusDeclined, false, BidderOutcomeLostToOther},
		{"closed without sale", listings.ItemStatusClosed, BidStatusPending, false, BidderOutcomeClosedNoSale},
		{"declined while active", listings.ItemStatusActive, BidStatusDeclined, false, BidderOutcomeDeclined},
		{"pending while active", listings.ItemStatusActive, BidStatusPending, false, BidderOutcomeAwaiting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveBidderOutcome(tt.itemStatus, tt.bidStatus, tt.won))
		})
	}
}
