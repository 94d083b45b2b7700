//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbay/marketplace/pkg/testhelpers"
	"github.com/campusbay/marketplace/services/auth-service/internal/adapters/database"
	"github.com/campusbay/marketplace/services/auth-service/internal/domain/users"
)

func createUser(t *testing.T, pool *pgxpool.Pool, repo *database.PostgresUserRepository, email string) *users.User {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &users.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		DisplayName:  "Ana",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateUser(ctx, tx, user))
	require.NoError(t, tx.Commit(ctx))
	return user
}

func TestUserRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	pool := testDB.Pool
	repo := database.NewPostgresUserRepository(pool)
	ctx := context.Background()

	user := createUser(t, pool, repo, "ana@rutgers.edu")

	byEmail, err := repo.GetUserByEmail(ctx, "ana@rutgers.edu")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.False(t, byEmail.IsAdmin)

	_, err = repo.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, users.ErrUserNotFound)

	t.Run("duplicate email", func(t *testing.T) {
		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()

		dup := *user
		dup.ID = uuid.New()
		assert.ErrorIs(t, repo.CreateUser(ctx, tx, &dup), users.ErrUserAlreadyExists)
	})

	t.Run("set admin", func(t *testing.T) {
		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.SetAdmin(ctx, tx, user.ID, true))
		assert.ErrorIs(t, repo.SetAdmin(ctx, tx, uuid.New(), true), users.ErrUserNotFound)
		require.NoError(t, tx.Commit(ctx))

		updated, err := repo.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, updated.IsAdmin)
	})
}

func TestTokenRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	pool := testDB.Pool
	userRepo := database.NewPostgresUserRepository(pool)
	repo := database.NewPostgresTokenRepository(pool)
	ctx := context.Background()

	user := createUser(t, pool, userRepo, "bo@rutgers.edu")
	hashes := [][]byte{[]byte("hash-one"), []byte("hash-two")}

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	for _, h := range hashes {
		require.NoError(t, repo.CreateRefreshToken(ctx, tx, &users.RefreshToken{
			TokenHash: h,
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
			UserAgent: "test",
		}))
	}
	require.NoError(t, tx.Commit(ctx))

	tx, err = pool.Begin(ctx)
	require.NoError(t, err)
	token, err := repo.GetRefreshTokenForUpdate(ctx, tx, hashes[0])
	require.NoError(t, err)
	assert.Equal(t, user.ID, token.UserID)
	assert.False(t, token.Revoked)

	_, err = repo.GetRefreshTokenForUpdate(ctx, tx, []byte("missing"))
	assert.ErrorIs(t, err, users.ErrInvalidToken)

	require.NoError(t, repo.RevokeRefreshToken(ctx, tx, hashes[0]))
	require.NoError(t, tx.Commit(ctx))

	tx, err = pool.Begin(ctx)
	require.NoError(t, err)
	token, err = repo.GetRefreshTokenForUpdate(ctx, tx, hashes[0])
	require.NoError(t, err)
	assert.True(t, token.Revoked)

	require.NoError(t, repo.RevokeAllUserTokens(ctx, tx, user.ID))
	token, err = repo.GetRefreshTokenForUpdate(ctx, tx, hashes[1])
	require.NoError(t, err)
	assert.True(t, token.Revoked)
	require.NoError(t, tx.Commit(ctx))
}
