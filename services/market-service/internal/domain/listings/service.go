package listings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusbay/marketplace/pkg/database"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ImageInput is an image reference supplied with a new listing.
type ImageInput struct {
	Path      string
	IsPrimary bool
}

// CreateItemCommand represents the command to create a new listing
type CreateItemCommand struct {
	SellerID       uuid.UUID
	Title          string
	Description    string
	Price          int64
	CategoryID     *int32
	ListingType    ListingType
	PickupLocation string
	PickupCampus   string
	Images         []ImageInput
}

// ItemFilters narrows the active listing feed. Zero values mean "any".
type ItemFilters struct {
	CategoryID  *int32
	Campus      string
	ListingType ListingType
	MinPrice    *int64
	MaxPrice    *int64
}

// ListItemsQuery represents filter and pagination parameters for browsing
type ListItemsQuery struct {
	Filters ItemFilters
	Limit   int
	Offset  int
}

// SellerStatusFilter selects which of a seller's listings are shown.
type SellerStatusFilter string

const (
	SellerStatusAll    SellerStatusFilter = "all"
	SellerStatusActive SellerStatusFilter = "active"
	// SellerStatusClosed matches both closed and sold listings.
	SellerStatusClosed SellerStatusFilter = "closed"
)

// ListSellerItemsQuery represents pagination parameters for a seller's listings
type ListSellerItemsQuery struct {
	SellerID uuid.UUID
	Status   SellerStatusFilter
	Limit    int
	Offset   int
}

// Service implements the Listing Store
type Service struct {
	txManager  database.TransactionManager
	items      ItemRepository
	categories CategoryRepository
	cache      ItemCache
	campuses   map[string]struct{}
	logger     *slog.Logger
}

// Option customizes a Service
type Option func(*Service)

// WithCache enables cache-aside reads for GetItem.
func WithCache(cache ItemCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithCampuses replaces the default pickup campus set.
func WithCampuses(campuses []string) Option {
	return func(s *Service) {
		if len(campuses) == 0 {
			return
		}
		s.campuses = make(map[string]struct{}, len(campuses))
		for _, c := range campuses {
			s.campuses[strings.TrimSpace(c)] = struct{}{}
		}
	}
}

// NewService creates a new listing service
func NewService(
	txManager database.TransactionManager,
	items ItemRepository,
	categories CategoryRepository,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		txManager:  txManager,
		items:      items,
		categories: categories,
		logger:     logger,
	}
	WithCampuses(DefaultCampuses)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateItem validates and stores a new active listing with its images.
func (s *Service) CreateItem(ctx context.Context, cmd CreateItemCommand) (*Item, error) {
	if err := s.validateCreate(cmd); err != nil {
		return nil, err
	}

	item := &Item{
		ID:             uuid.New(),
		SellerID:       cmd.SellerID,
		Title:          strings.TrimSpace(cmd.Title),
		Description:    strings.TrimSpace(cmd.Description),
		Price:          cmd.Price,
		CategoryID:     cmd.CategoryID,
		Status:         ItemStatusActive,
		ListingType:    cmd.ListingType,
		PickupLocation: strings.TrimSpace(cmd.PickupLocation),
		PickupCampus:   strings.TrimSpace(cmd.PickupCampus),
	}
	if item.ListingType == ListingTypeFixed {
		price := item.Price
		item.BuyNowPrice = &price
	}

	if cmd.CategoryID != nil {
		category, err := s.categories.GetCategoryByID(ctx, *cmd.CategoryID)
		if err != nil {
			return nil, wrapStorage(err)
		}
		item.CategoryName = category.Name
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Images = buildImages(item.ID, cmd.Images, now)

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrStorage, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.items.CreateItem(ctx, tx, item); err != nil {
		return nil, wrapStorage(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %w", ErrStorage, err)
	}

	return item, nil
}

func (s *Service) validateCreate(cmd CreateItemCommand) error {
	if strings.TrimSpace(cmd.Title) == "" {
		return ErrInvalidTitle
	}
	if strings.TrimSpace(cmd.Description) == "" {
		return ErrInvalidDescription
	}
	if cmd.Price <= 0 {
		return ErrInvalidPrice
	}
	if !cmd.ListingType.Valid() {
		return ErrInvalidListingType
	}
	if _, ok := s.campuses[strings.TrimSpace(cmd.PickupCampus)]; !ok {
		return ErrInvalidCampus
	}
	if len(cmd.Images) == 0 {
		return ErrImageRequired
	}

	primaries := 0
	for _, img := range cmd.Images {
		if strings.TrimSpace(img.Path) == "" {
			return ErrInvalidImagePath
		}
		if img.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return ErrMultiplePrimaryImages
	}
	return nil
}

// buildImages keeps input order as sort order; the first image is primary unless one is flagged.
func buildImages(itemID uuid.UUID, inputs []ImageInput, now time.Time) []Image {
	hasPrimary := false
	for _, in := range inputs {
		hasPrimary = hasPrimary || in.IsPrimary
	}

	images := make([]Image, 0, len(inputs))
	for i, in := range inputs {
		images = append(images, Image{
			ID:        uuid.New(),
			ItemID:    itemID,
			ImagePath: strings.TrimSpace(in.Path),
			IsPrimary: in.IsPrimary || (!hasPrimary && i == 0),
			SortOrder: int32(i),
			CreatedAt: now,
		})
	}
	return images
}

// GetItem returns a listing with its images, serving from cache when possible.
func (s *Service) GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, itemID)
		if err != nil {
			s.logger.Warn("Item cache read failed", "item_id", itemID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	item, err := s.items.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, wrapStorage(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, item); err != nil {
			s.logger.Warn("Item cache write failed", "item_id", itemID, "error", err)
		}
	}
	return item, nil
}

// ListActive returns one page of active listings and the total number of matches.
func (s *Service) ListActive(ctx context.Context, query ListItemsQuery) ([]*Item, int, error) {
	f := query.Filters
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, 0, ErrInvalidPriceRange
	}
	if f.ListingType != "" && !f.ListingType.Valid() {
		return nil, 0, ErrInvalidListingType
	}
	query.Limit, query.Offset = normalizePage(query.Limit, query.Offset)

	items, total, err := s.items.ListActiveItems(ctx, query)
	if err != nil {
		return nil, 0, wrapStorage(err)
	}
	return items, total, nil
}

// ListSellerItems returns one page of a seller's listings filtered by status.
func (s *Service) ListSellerItems(ctx context.Context, query ListSellerItemsQuery) ([]*Item, int, error) {
	switch query.Status {
	case "":
		query.Status = SellerStatusAll
	case SellerStatusAll, SellerStatusActive, SellerStatusClosed:
	default:
		return nil, 0, ErrInvalidStatusFilter
	}
	query.Limit, query.Offset = normalizePage(query.Limit, query.Offset)

	items, total, err := s.items.ListItemsBySeller(ctx, query)
	if err != nil {
		return nil, 0, wrapStorage(err)
	}
	return items, total, nil
}

// ListPurchases returns the items a buyer won.
func (s *Service) ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]*Item, error) {
	items, err := s.items.ListItemsByBuyer(ctx, buyerID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return items, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return categories, nil
}

// PriceRange reports the price span of active listings, or DefaultPriceBounds when there are none.
func (s *Service) PriceRange(ctx context.Context) (PriceBounds, error) {
	bounds, ok, err := s.items.ActivePriceBounds(ctx)
	if err != nil {
		return PriceBounds{}, wrapStorage(err)
	}
	if !ok {
		return DefaultPriceBounds, nil
	}
	return bounds, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// wrapStorage passes domain errors through and tags everything else as ErrStorage.
func wrapStorage(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrStorage) {
		return err
	}
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: %w", ErrCategoryNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
