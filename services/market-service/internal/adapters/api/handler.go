package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/campusbay/marketplace/pkg/auth"
	"github.com/campusbay/marketplace/pkg/rpc"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/bids"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

const ServiceName = "market.v1.MarketService"

// PublicProcedures can be called without a token.
var PublicProcedures = []string{
	rpc.Procedure(ServiceName, "GetItem"),
	rpc.Procedure(ServiceName, "ListItems"),
	rpc.Procedure(ServiceName, "ListCategories"),
	rpc.Procedure(ServiceName, "GetPriceRange"),
	rpc.Procedure(ServiceName, "GetItemBids"),
}

// Rules are ordered: wrapped sentinels such as ErrBidNotFound and
// ErrListingTypeMismatch resolve through their parents. A busy item maps to
// Aborted: the caller re-reads the item and retries if it is still active.
var errorMapper = rpc.ErrorMapper{
	{Target: listings.ErrNotFound, Code: connect.CodeNotFound},
	{Target: bids.ErrNotSeller, Code: connect.CodePermissionDenied},
	{Target: bids.ErrSelfBid, Code: connect.CodePermissionDenied},
	{Target: bids.ErrDuplicateOffer, Code: connect.CodeAlreadyExists},
	{Target: bids.ErrAuctionClosed, Code: connect.CodeFailedPrecondition},
	{Target: listings.ErrInvalidTransition, Code: connect.CodeFailedPrecondition},
	{Target: bids.ErrBidTooLow, Code: connect.CodeFailedPrecondition},
	{Target: listings.ErrInvalidInput, Code: connect.CodeInvalidArgument},
	{Target: bids.ErrItemBusy, Code: connect.CodeAborted},
	{Target: listings.ErrStorage, Code: connect.CodeUnavailable},
	{Target: auth.ErrNoIdentity, Code: connect.CodeUnauthenticated},
}

// ListingService is the part of listings.Service the API needs
type ListingService interface {
	CreateItem(ctx context.Context, cmd listings.CreateItemCommand) (*listings.Item, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*listings.Item, error)
	ListActive(ctx context.Context, query listings.ListItemsQuery) ([]*listings.Item, int, error)
	ListSellerItems(ctx context.Context, query listings.ListSellerItemsQuery) ([]*listings.Item, int, error)
	ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]*listings.Item, error)
	ListCategories(ctx context.Context) ([]*listings.Category, error)
	PriceRange(ctx context.Context) (listings.PriceBounds, error)
}

// ResolutionEngine is the part of bids.Engine the API needs
type ResolutionEngine interface {
	PlaceBid(ctx context.Context, cmd bids.PlaceBidCommand) (*bids.Bid, error)
	PlaceOffer(ctx context.Context, cmd bids.PlaceOfferCommand) (*bids.Bid, error)
	AcceptBid(ctx context.Context, cmd bids.ResolveCommand) error
	DeclineBid(ctx context.Context, cmd bids.ResolveCommand) error
	AcceptOffer(ctx context.Context, cmd bids.ResolveCommand) error
	AcceptHighestBid(ctx context.Context, cmd bids.CloseListingCommand) (*bids.Bid, error)
	CloseListing(ctx context.Context, cmd bids.CloseListingCommand) error
	ListBids(ctx context.Context, itemID uuid.UUID) ([]*bids.Bid, error)
	ListBidderBids(ctx context.Context, bidderID uuid.UUID) ([]*bids.BidderBid, error)
}

type MarketServiceHandler struct {
	listings ListingService
	engine   ResolutionEngine
}

func NewMarketServiceHandler(listingService ListingService, engine ResolutionEngine) *MarketServiceHandler {
	return &MarketServiceHandler{
		listings: listingService,
		engine:   engine,
	}
}

// Register mounts every procedure on mux.
func (h *MarketServiceHandler) Register(mux *http.ServeMux, interceptors ...connect.Interceptor) {
	opts := rpc.HandlerOptions(interceptors...)

	handle(mux, "CreateItem", h.CreateItem, opts)
	handle(mux, "GetItem", h.GetItem, opts)
	handle(mux, "ListItems", h.ListItems, opts)
	handle(mux, "ListSellerItems", h.ListSellerItems, opts)
	handle(mux, "ListCategories", h.ListCategories, opts)
	handle(mux, "GetPriceRange", h.GetPriceRange, opts)
	handle(mux, "GetItemBids", h.GetItemBids, opts)
	handle(mux, "ListMyBids", h.ListMyBids, opts)
	handle(mux, "ListMyPurchases", h.ListMyPurchases, opts)
	handle(mux, "PlaceBid", h.PlaceBid, opts)
	handle(mux, "PlaceOffer", h.PlaceOffer, opts)
	handle(mux, "AcceptBid", h.AcceptBid, opts)
	handle(mux, "DeclineBid", h.DeclineBid, opts)
	handle(mux, "AcceptOffer", h.AcceptOffer, opts)
	handle(mux, "AcceptHighestBid", h.AcceptHighestBid, opts)
	handle(mux, "CloseListing", h.CloseListing, opts)
}

func handle[Req, Res any](
	mux *http.ServeMux,
	method string,
	fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error),
	opts []connect.HandlerOption,
) {
	procedure := rpc.Procedure(ServiceName, method)
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}

// CreateItem lists a new item for the authenticated seller
func (h *MarketServiceHandler) CreateItem(
	ctx context.Context,
	req *connect.Request[CreateItemRequest],
) (*connect.Response[ItemResponse], error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	msg := req.Msg
	images := make([]listings.ImageInput, 0, len(msg.Images))
	for _, img := range msg.Images {
		images = append(images, listings.ImageInput{Path: img.Path, IsPrimary: img.IsPrimary})
	}

	item, err := h.listings.CreateItem(ctx, listings.CreateItemCommand{
		SellerID:       userID,
		Title:          msg.Title,
		Description:    msg.Description,
		Price:          msg.Price,
		CategoryID:     msg.CategoryID,
		ListingType:    listings.ListingType(msg.ListingType),
		PickupLocation: msg.PickupLocation,
		PickupCampus:   msg.PickupCampus,
		Images:         images,
	})
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	return connect.NewResponse(&ItemResponse{Item: toItem(item)}), nil
}

// GetItem retrieves an item by ID
func (h *MarketServiceHandler) GetItem(
	ctx context.Context,
	req *connect.Request[GetItemRequest],
) (*connect.Response[ItemResponse], error) {
	itemID, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, rpc.InvalidArgument("invalid id")
	}

	item, err := h.listings.GetItem(ctx, itemID)
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	return connect.NewResponse(&ItemResponse{Item: toItem(item)}), nil
}

// ListItems browses active listings with filters
func (h *MarketServiceHandler) ListItems(
	ctx context.Context,
	req *connect.Request[ListItemsRequest],
) (*connect.Response[ListItemsResponse], error) {
	msg := req.Msg
	items, total, err := h.listings.ListActive(ctx, listings.ListItemsQuery{
		Filters: listings.ItemFilters{
			CategoryID:  msg.CategoryID,
			Campus:      msg.Campus,
			ListingType: listings.ListingType(msg.ListingType),
			MinPrice:    msg.MinPrice,
			MaxPrice:    msg.MaxPrice,
		},
		Limit:  int(msg.PageSize),
		Offset: int(msg.Offset),
	})
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	return connect.NewResponse(&ListItemsResponse{Items: toItems(items), Total: int32(total)}), nil
}

// ListSellerItems lists the authenticated seller's items
func (h *MarketServiceHandler) ListSellerItems(
	ctx context.Context,
	req *connect.Request[ListSellerItemsRequest],
) (*connect.Response[ListItemsResponse], error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	items, total, err := h.listings.ListSellerItems(ctx, listings.ListSellerItemsQuery{
		SellerID: userID,
		Status:   listings.SellerStatusFilter(req.Msg.Status),
		Limit:    int(req.Msg.PageSize),
		Offset:   int(req.Msg.Offset),
	})
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	return connect.NewResponse(&ListItemsResponse{Items: toItems(items), Total: int32(total)}), nil
}

func (h *MarketServiceHandler) ListCategories(
	ctx context.Context,
	_ *connect.Request[ListCategoriesRequest],
) (*connect.Response[ListCategoriesResponse], error) {
	categories, err := h.listings.ListCategories(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	res := &ListCategoriesResponse{Categories: make([]Category, len(categories))}
	for i, c := range categories {
		res.Categories[i] = Category{ID: c.ID, Name: c.Name}
	}
	return connect.NewResponse(res), nil
}

// GetPriceRange returns the price span used to seed browse filters
func (h *MarketServiceHandler) GetPriceRange(
	ctx context.Context,
	_ *connect.Request[GetPriceRangeRequest],
) (*connect.Response[GetPriceRangeResponse], error) {
	bounds, err := h.listings.PriceRange(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&GetPriceRangeResponse{Min: bounds.Min, Max: bounds.Max}), nil
}

// GetItemBids retrieves all bids for an item, highest first
func (h *MarketServiceHandler) GetItemBids(
	ctx context.Context,
	req *connect.Request[GetItemBidsRequest],
) (*connect.Response[GetItemBidsResponse], error) {
	itemID, err := uuid.Parse(req.Msg.ItemID)
	if err != nil {
		return nil, rpc.InvalidArgument("invalid item_id")
	}

	bidList, err := h.engine.ListBids(ctx, itemID)
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	res := &GetItemBidsResponse{Bids: make([]*Bid, len(bidList))}
	for i, bid := range bidList {
		res.Bids[i] = toBid(bid)
	}
	return connect.NewResponse(res), nil
}

// ListMyBids returns the caller's most relevant bid per item with its outcome
func (h *MarketServiceHandler) ListMyBids(
	ctx context.Context,
	_ *connect.Request[ListMyBidsRequest],
) (*connect.Response[ListMyBidsResponse], error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	bidderBids, err := h.engine.ListBidderBids(ctx, userID)
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	res := &ListMyBidsResponse{Bids: make([]*BidderBid, len(bidderBids))}
	for i, bb := range bidderBids {
		res.Bids[i] = &BidderBid{
			Bid:         *toBid(&bb.Bid),
			ItemTitle:   bb.ItemTitle,
			ItemStatus:  string(bb.ItemStatus),
			ListingType: string(bb.ListingType),
			ImagePath:   bb.ImagePath,
			Outcome:     string(bb.Outcome),
		}
	}
	return connect.NewResponse(res), nil
}

// ListMyPurchases returns the items the caller bought
func (h *MarketServiceHandler) ListMyPurchases(
	ctx context.Context,
	_ *connect.Request[ListPurchasesRequest],
) (*connect.Response[ListPurchasesResponse], error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}

	items, err := h.listings.ListPurchases(ctx, userID)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&ListPurchasesResponse{Items: toItems(items)}), nil
}

func (h *MarketServiceHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[BidResponse], error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	itemID, err := uuid.Parse(req.Msg.ItemID)
	if err != nil {
		return nil, rpc.InvalidArgument("invalid item_id")
	}

	bid, err := h.engine.PlaceBid(ctx, bids.PlaceBidCommand{
		ItemID:   itemID,
		BidderID: userID,
		Amount:   req.Msg.Amount,
	})
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&BidResponse{Bid: toBid(bid)}), nil
}

// PlaceOffer is "buy now" on a fixed-price listing
func (h *MarketServiceHandler) PlaceOffer(
	ctx context.Context,
	req *connect.Request[PlaceOfferRequest],
) (*connect.Response[BidResponse], error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	itemID, err := uuid.Parse(req.Msg.ItemID)
	if err != nil {
		return nil, rpc.InvalidArgument("invalid item_id")
	}

	bid, err := h.engine.PlaceOffer(ctx, bids.PlaceOfferCommand{ItemID: itemID, BidderID: userID})
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&BidResponse{Bid: toBid(bid)}), nil
}

func (h *MarketServiceHandler) AcceptBid(
	ctx context.Context,
	req *connect.Request[ResolveRequest],
) (*connect.Response[Empty], error) {
	return h.resolve(ctx, req.Msg, h.engine.AcceptBid)
}

func (h *MarketServiceHandler) DeclineBid(
	ctx context.Context,
	req *connect.Request[ResolveRequest],
) (*connect.Response[Empty], error) {
	return h.resolve(ctx, req.Msg, h.engine.DeclineBid)
}

func (h *MarketServiceHandler) AcceptOffer(
	ctx context.Context,
	req *connect.Request[ResolveRequest],
) (*connect.Response[Empty], error) {
	return h.resolve(ctx, req.Msg, h.engine.AcceptOffer)
}

func (h *MarketServiceHandler) resolve(
	ctx context.Context,
	msg *ResolveRequest,
	fn func(context.Context, bids.ResolveCommand) error,
) (*connect.Response[Empty], error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	itemID, err := uuid.Parse(msg.ItemID)
	if err != nil {
		return nil, rpc.InvalidArgument("invalid item_id")
	}
	bidID, err := uuid.Parse(msg.BidID)
	if err != nil {
		return nil, rpc.InvalidArgument("invalid bid_id")
	}

	if err := fn(ctx, bids.ResolveCommand{ItemID: itemID, BidID: bidID, ActorID: userID}); err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// AcceptHighestBid sells an auction to its highest open bid
func (h *MarketServiceHandler) AcceptHighestBid(
	ctx context.Context,
	req *connect.Request[ItemRequest],
) (*connect.Response[BidResponse], error) {
	cmd, err := closeCommand(ctx, req.Msg)
	if err != nil {
		return nil, err
	}

	bid, err := h.engine.AcceptHighestBid(ctx, cmd)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&BidResponse{Bid: toBid(bid)}), nil
}

func (h *MarketServiceHandler) CloseListing(
	ctx context.Context,
	req *connect.Request[ItemRequest],
) (*connect.Response[Empty], error) {
	cmd, err := closeCommand(ctx, req.Msg)
	if err != nil {
		return nil, err
	}

	if err := h.engine.CloseListing(ctx, cmd); err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func closeCommand(ctx context.Context, msg *ItemRequest) (bids.CloseListingCommand, error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return bids.CloseListingCommand{}, errorMapper.Map(err)
	}
	itemID, err := uuid.Parse(msg.ItemID)
	if err != nil {
		return bids.CloseListingCommand{}, rpc.InvalidArgument("invalid item_id")
	}
	return bids.CloseListingCommand{ItemID: itemID, ActorID: userID}, nil
}
