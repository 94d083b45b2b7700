package listings

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the lifecycle state of a listing. Only the resolution engine moves it.
type ItemStatus string

const (
	ItemStatusActive ItemStatus = "active"
	ItemStatusClosed ItemStatus = "closed"
	ItemStatusSold   ItemStatus = "sold"
)

// ListingType selects how buyers compete for an item.
type ListingType string

const (
	ListingTypeAuction ListingType = "auction"
	ListingTypeFixed   ListingType = "fixed"
)

func (t ListingType) Valid() bool {
	return t == ListingTypeAuction || t == ListingTypeFixed
}

// Category is seeded reference data
type Category struct {
	ID   int32  `db:"id"`
	Name string `db:"name"`
}

// Image is an opaque path to a picture stored elsewhere.
type Image struct {
	ID        uuid.UUID `db:"id"`
	ItemID    uuid.UUID `db:"item_id"`
	ImagePath string    `db:"image_path"`
	IsPrimary bool      `db:"is_primary"`
	SortOrder int32     `db:"sort_order"`
	CreatedAt time.Time `db:"created_at"`
}

// Item represents a marketplace listing
type Item struct {
	ID             uuid.UUID   `db:"id"`
	SellerID       uuid.UUID   `db:"seller_id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	Price          int64       `db:"price"`
	CategoryID     *int32      `db:"category_id"`
	CategoryName   string      `db:"category_name"`
	Status         ItemStatus  `db:"status"`
	ListingType    ListingType `db:"listing_type"`
	BuyNowPrice    *int64      `db:"buy_now_price"`
	PickupLocation string      `db:"pickup_location"`
	PickupCampus   string      `db:"pickup_campus"`
	ChosenBidID    *uuid.UUID  `db:"chosen_bid_id"`
	Images         []Image     `db:"-"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (i *Item) IsActive() bool {
	return i.Status == ItemStatusActive
}

// PrimaryImage picks the display image: flagged primary first, then lowest
// sort order, then oldest.
func (i *Item) PrimaryImage() *Image {
	if len(i.Images) == 0 {
		return nil
	}
	images := make([]Image, len(i.Images))
	copy(images, i.Images)
	sort.SliceStable(images, func(a, b int) bool {
		if images[a].IsPrimary != images[b].IsPrimary {
			return images[a].IsPrimary
		}
		if images[a].SortOrder != images[b].SortOrder {
			return images[a].SortOrder < images[b].SortOrder
		}
		return images[a].CreatedAt.Before(images[b].CreatedAt)
	})
	return &images[0]
}

// PriceBounds is the price span of active listings.
type PriceBounds struct {
	Min int64
	Max int64
}

// DefaultPriceBounds is returned when no active listing exists.
var DefaultPriceBounds = PriceBounds{Min: 0, Max: 10000}

// DefaultCampuses are the pickup campuses offered when none are configured.
var DefaultCampuses = []string{"Busch", "College Ave", "Livingston", "SoCam"}
