package listings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestItem_PrimaryImage(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		images []Image
		want   string
	}{
		{name: "no images", images: nil, want: ""},
		{
			name: "flagged primary wins over sort order",
			images: []Image{
				{ImagePath: "first.jpg", SortOrder: 0, CreatedAt: now},
				{ImagePath: "flagged.jpg", IsPrimary: true, SortOrder: 3, CreatedAt: now},
			},
			want: "flagged.jpg",
		},
		{
			name: "lowest sort order without primary",
			images: []Image{
				{ImagePath: "second.jpg", SortOrder: 1, CreatedAt: now},
				{ImagePath: "first.jpg", SortOrder: 0, CreatedAt: now.Add(time.Minute)},
			},
			want: "first.jpg",
		},
		{
			name: "oldest on equal sort order",
			images: []Image{
				{ImagePath: "newer.jpg", CreatedAt: now.Add(time.Second)},
				{ImagePath: "older.jpg", CreatedAt: now},
			},
			want: "older.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &Item{Images: tt.images}
			got := item.PrimaryImage()
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got.ImagePath)
		})
	}
}

func TestListingType_Valid(t *testing.T) {
	assert.True(t, ListingTypeAuction.Valid())
	assert.True(t, ListingTypeFixed.Valid())
	assert.False(t, ListingType("raffle").Valid())
}
