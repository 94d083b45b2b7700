package listings

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrItemNotFound      = fmt.Errorf("item %w", ErrNotFound)
	ErrCategoryNotFound  = fmt.Errorf("category %w", ErrNotFound)
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStorage           = errors.New("storage error")
)

// Validation errors
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidTitle          = fmt.Errorf("%w: title is required", ErrInvalidInput)
	ErrInvalidDescription    = fmt.Errorf("%w: description is required", ErrInvalidInput)
	ErrInvalidPrice          = fmt.Errorf("%w: price must be greater than 0", ErrInvalidInput)
	ErrInvalidListingType    = fmt.Errorf("%w: listing type must be auction or fixed", ErrInvalidInput)
	ErrInvalidCampus         = fmt.Errorf("%w: unknown pickup campus", ErrInvalidInput)
	ErrImageRequired         = fmt.Errorf("%w: at least one image is required", ErrInvalidInput)
	ErrInvalidImagePath      = fmt.Errorf("%w: image path is required", ErrInvalidInput)
	ErrMultiplePrimaryImages = fmt.Errorf("%w: only one image can be primary", ErrInvalidInput)
	ErrInvalidPriceRange     = fmt.Errorf("%w: min price exceeds max price", ErrInvalidInput)
	ErrInvalidStatusFilter   = fmt.Errorf("%w: status filter must be all, active or closed", ErrInvalidInput)
)
