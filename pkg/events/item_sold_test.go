package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemSold_RoundTrip(t *testing.T) {
	in := &ItemSold{
		EventID:     uuid.New(),
		ItemID:      uuid.New(),
		BidID:       uuid.New(),
		SellerID:    uuid.New(),
		BuyerID:     uuid.New(),
		Amount:      1550,
		ListingType: "auction",
		OccurredAt:  time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC),
	}

	body, err := EncodeItemSold(in)
	require.NoError(t, err)

	out, err := DecodeItemSold(body)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeItemSold_MissingBuyer(t *testing.T) {
	body, err := NewPayload().
		UUID("event_id", uuid.New()).
		UUID("item_id", uuid.New()).
		UUID("bid_id", uuid.New()).
		UUID("seller_id", uuid.New()).
		Encode()
	require.NoError(t, err)

	_, err = DecodeItemSold(body)
	assert.Error(t, err)
}
