package api

import (
	"time"

	"github.com/campusbay/marketplace/services/market-service/internal/domain/bids"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

// Wire messages for market.v1.MarketService. Money is always integer cents.

type Image struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	IsPrimary bool   `json:"is_primary"`
	SortOrder int32  `json:"sort_order"`
}

type Item struct {
	ID               string  `json:"id"`
	SellerID         string  `json:"seller_id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Price            int64   `json:"price"`
	CategoryID       *int32  `json:"category_id,omitempty"`
	CategoryName     string  `json:"category_name,omitempty"`
	Status           string  `json:"status"`
	ListingType      string  `json:"listing_type"`
	BuyNowPrice      *int64  `json:"buy_now_price,omitempty"`
	PickupLocation   string  `json:"pickup_location,omitempty"`
	PickupCampus     string  `json:"pickup_campus"`
	ChosenBidID      string  `json:"chosen_bid_id,omitempty"`
	PrimaryImagePath string  `json:"primary_image_path,omitempty"`
	Images           []Image `json:"images"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type Bid struct {
	ID       string `json:"id"`
	ItemID   string `json:"item_id"`
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
	PlacedAt string `json:"placed_at"`
}

type BidderBid struct {
	Bid
	ItemTitle   string `json:"item_title"`
	ItemStatus  string `json:"item_status"`
	ListingType string `json:"listing_type"`
	ImagePath   string `json:"image_path,omitempty"`
	Outcome     string `json:"outcome"`
}

type Category struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
}

type ImageInput struct {
	Path      string `json:"path"`
	IsPrimary bool   `json:"is_primary"`
}

type CreateItemRequest struct {
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Price          int64        `json:"price"`
	CategoryID     *int32       `json:"category_id,omitempty"`
	ListingType    string       `json:"listing_type"`
	PickupLocation string       `json:"pickup_location"`
	PickupCampus   string       `json:"pickup_campus"`
	Images         []ImageInput `json:"images"`
}

type ItemResponse struct {
	Item *Item `json:"item"`
}

type GetItemRequest struct {
	ID string `json:"id"`
}

type ListItemsRequest struct {
	CategoryID  *int32 `json:"category_id,omitempty"`
	Campus      string `json:"campus,omitempty"`
	ListingType string `json:"listing_type,omitempty"`
	MinPrice    *int64 `json:"min_price,omitempty"`
	MaxPrice    *int64 `json:"max_price,omitempty"`
	PageSize    int32  `json:"page_size,omitempty"`
	Offset      int32  `json:"offset,omitempty"`
}

type ListSellerItemsRequest struct {
	Status   string `json:"status,omitempty"`
	PageSize int32  `json:"page_size,omitempty"`
	Offset   int32  `json:"offset,omitempty"`
}

type ListItemsResponse struct {
	Items []*Item `json:"items"`
	Total int32   `json:"total"`
}

type ListPurchasesRequest struct{}

type ListPurchasesResponse struct {
	Items []*Item `json:"items"`
}

type ListCategoriesRequest struct{}

type ListCategoriesResponse struct {
	Categories []Category `json:"categories"`
}

type GetPriceRangeRequest struct{}

type GetPriceRangeResponse struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type GetItemBidsRequest struct {
	ItemID string `json:"item_id"`
}

type GetItemBidsResponse struct {
	Bids []*Bid `json:"bids"`
}

type ListMyBidsRequest struct{}

type ListMyBidsResponse struct {
	Bids []*BidderBid `json:"bids"`
}

type PlaceBidRequest struct {
	ItemID string `json:"item_id"`
	Amount int64  `json:"amount"`
}

type PlaceOfferRequest struct {
	ItemID string `json:"item_id"`
}

type BidResponse struct {
	Bid *Bid `json:"bid"`
}

// ResolveRequest targets one bid on an item: AcceptBid, DeclineBid, AcceptOffer.
type ResolveRequest struct {
	ItemID string `json:"item_id"`
	BidID  string `json:"bid_id"`
}

// ItemRequest targets a whole listing: CloseListing, AcceptHighestBid.
type ItemRequest struct {
	ItemID string `json:"item_id"`
}

type Empty struct{}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toItem(item *listings.Item) *Item {
	out := &Item{
		ID:             item.ID.String(),
		SellerID:       item.SellerID.String(),
		Title:          item.Title,
		Description:    item.Description,
		Price:          item.Price,
		CategoryID:     item.CategoryID,
		CategoryName:   item.CategoryName,
		Status:         string(item.Status),
		ListingType:    string(item.ListingType),
		BuyNowPrice:    item.BuyNowPrice,
		PickupLocation: item.PickupLocation,
		PickupCampus:   item.PickupCampus,
		Images:         make([]Image, 0, len(item.Images)),
		CreatedAt:      formatTime(item.CreatedAt),
		UpdatedAt:      formatTime(item.UpdatedAt),
	}
	if item.ChosenBidID != nil {
		out.ChosenBidID = item.ChosenBidID.String()
	}
	if primary := item.PrimaryImage(); primary != nil {
		out.PrimaryImagePath = primary.ImagePath
	}
	for _, img := range item.Images {
		out.Images = append(out.Images, Image{
			ID:        img.ID.String(),
			Path:      img.ImagePath,
			IsPrimary: img.IsPrimary,
			SortOrder: img.SortOrder,
		})
	}
	return out
}

func toItems(items []*listings.Item) []*Item {
	out := make([]*Item, len(items))
	for i, item := range items {
		out[i] = toItem(item)
	}
	return out
}

func toBid(bid *bids.Bid) *Bid {
	return &Bid{
		ID:       bid.ID.String(),
		ItemID:   bid.ItemID.String(),
		BidderID: bid.BidderID.String(),
		Amount:   bid.Amount,
		Status:   string(bid.Status),
		PlacedAt: formatTime(bid.PlacedAt),
	}
}
