package users

import (
	"errors"
	"fmt"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("admin privileges required")
)

// Validation errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidEmail       = fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	ErrNotCampusEmail     = fmt.Errorf("%w: email must belong to a campus domain", ErrInvalidInput)
	ErrPasswordTooShort   = fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	ErrInvalidDisplayName = fmt.Errorf("%w: display name is required", ErrInvalidInput)
)
