package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusbay/marketplace/pkg/events"
)

// UserRepository reports a missing user as ErrUserNotFound.
type UserRepository interface {
	CreateUser(ctx context.Context, tx pgx.Tx, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SetAdmin(ctx context.Context, tx pgx.Tx, id uuid.UUID, isAdmin bool) error
}

type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, tx pgx.Tx, token *RefreshToken) error
	// GetRefreshTokenForUpdate locks the token row so a refresh token can be rotated once.
	GetRefreshTokenForUpdate(ctx context.Context, tx pgx.Tx, tokenHash []byte) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tx pgx.Tx, tokenHash []byte) error
	// RevokeAllUserTokens is used when a revoked token is presented again
	RevokeAllUserTokens(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}

type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}
