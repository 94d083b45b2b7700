package bids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

func TestNextItemStatus(t *testing.T) {
	tests := []struct {
		from    listings.ItemStatus
		event   ItemEvent
		want    listings.ItemStatus
		wantErr bool
	}{
		{from: listings.ItemStatusActive, event: ItemEventClose, want: listings.ItemStatusClosed},
		{from: listings.ItemStatusActive, event: ItemEventSell, want: listings.ItemStatusSold},
		{from: listings.ItemStatusSold, event: ItemEventClose, wantErr: true},
		{from: listings.ItemStatusSold, event: ItemEventSell, wantErr: true},
		{from: listings.ItemStatusClosed, event: ItemEventClose, wantErr: true},
		{from: listings.ItemStatusClosed, event: ItemEventSell, wantErr: true},
		{from: listings.ItemStatusActive, event: "relist", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"+"+string(tt.event), func(t *testing.T) {
			got, err := NextItemStatus(tt.from, tt.event)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextBidStatus(t *testing.T) {
	auction, fixed := listings.ListingTypeAuction, listings.ListingTypeFixed

	tests := []struct {
		name    string
		from    BidStatus
		event   BidEvent
		listing listings.ListingType
		want    BidStatus
		wantErr bool
	}{
		{name: "accept pending", from: BidStatusPending, event: BidEventAccept, listing: auction, want: BidStatusAccepted},
		{name: "decline pending", from: BidStatusPending, event: BidEventDecline, listing: fixed, want: BidStatusDeclined},
		{name: "auction loser is declined", from: BidStatusPending, event: BidEventLose, listing: auction, want: BidStatusDeclined},
		{name: "fixed loser is not accepted", from: BidStatusPending, event: BidEventLose, listing: fixed, want: BidStatusNotAccepted},
		{name: "declined keeps label when losing", from: BidStatusDeclined, event: BidEventLose, listing: fixed, want: BidStatusDeclined},
		{name: "accepted is terminal", from: BidStatusAccepted, event: BidEventDecline, listing: auction, wantErr: true},
		{name: "accepted cannot lose", from: BidStatusAccepted, event: BidEventLose, listing: auction, wantErr: true},
		{name: "declined cannot be accepted", from: BidStatusDeclined, event: BidEventAccept, listing: auction, wantErr: true},
		{name: "declined cannot be declined again", from: BidStatusDeclined, event: BidEventDecline, listing: auction, wantErr: true},
		{name: "not accepted cannot be accepted", from: BidStatusNotAccepted, event: BidEventAccept, listing: fixed, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextBidStatus(tt.from, tt.event, tt.listing)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBidStatus_Outcome(t *testing.T) {
	assert.Equal(t, OutcomeOpen, BidStatusPending.Outcome())
	assert.Equal(t, OutcomeWon, BidStatusAccepted.Outcome())
	assert.Equal(t, OutcomeLost, BidStatusDeclined.Outcome())
	assert.Equal(t, OutcomeLost, BidStatusNotAccepted.Outcome())
	assert.Equal(t, "lost", BidStatusNotAccepted.Outcome().String())

	assert.True(t, BidStatusPending.BlocksNewOffer())
	assert.True(t, BidStatusNotAccepted.BlocksNewOffer())
	assert.False(t, BidStatusDeclined.BlocksNewOffer())
}
