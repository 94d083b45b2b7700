package userstats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campusbay/marketplace/pkg/events"
	"github.com/campusbay/marketplace/pkg/testhelpers"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) UpsertUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID, displayName string) error {
	return m.Called(ctx, tx, userID, displayName).Error(0)
}

func (m *MockRepository) RecordSale(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID, amount int64, at time.Time) error {
	return m.Called(ctx, tx, sellerID, amount, at).Error(0)
}

func (m *MockRepository) RecordPurchase(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID, amount int64, at time.Time) error {
	return m.Called(ctx, tx, buyerID, amount, at).Error(0)
}

func (m *MockRepository) GetUserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UserStats), args.Error(1)
}

func (m *MockRepository) ListTopSellers(ctx context.Context, limit int) ([]*UserStats, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*UserStats), args.Error(1)
}

func (m *MockRepository) IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	return m.Called(ctx, tx, eventID).Error(0)
}

func newTestService() (*Service, *MockRepository, *testhelpers.FakeTxManager) {
	repo := new(MockRepository)
	txManager := &testhelpers.FakeTxManager{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, txManager, logger), repo, txManager
}

func soldEvent() *events.ItemSold {
	return &events.ItemSold{
		EventID:    uuid.New(),
		ItemID:     uuid.New(),
		BidID:      uuid.New(),
		SellerID:   uuid.New(),
		BuyerID:    uuid.New(),
		Amount:     4500,
		OccurredAt: time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC),
	}
}

func TestProcessItemSold_CreditsBothSides(t *testing.T) {
	svc, repo, txManager := newTestService()
	ctx := context.Background()
	event := soldEvent()

	repo.On("IsEventProcessed", ctx, mock.Anything, event.EventID).Return(false, nil)
	repo.On("RecordSale", ctx, mock.Anything, event.SellerID, int64(4500), event.OccurredAt).Return(nil)
	repo.On("RecordPurchase", ctx, mock.Anything, event.BuyerID, int64(4500), event.OccurredAt).Return(nil)
	repo.On("MarkEventProcessed", ctx, mock.Anything, event.EventID).Return(nil)

	require.NoError(t, svc.ProcessItemSold(ctx, event))
	repo.AssertExpectations(t)
	assert.True(t, txManager.Last().Committed)
}

func TestProcessItemSold_Duplicate(t *testing.T) {
	svc, repo, txManager := newTestService()
	ctx := context.Background()
	event := soldEvent()

	repo.On("IsEventProcessed", ctx, mock.Anything, event.EventID).Return(true, nil)

	require.NoError(t, svc.ProcessItemSold(ctx, event))
	repo.AssertNotCalled(t, "RecordSale", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, txManager.Last().Committed)
}

func TestProcessItemSold_FailureRollsBack(t *testing.T) {
	svc, repo, txManager := newTestService()
	ctx := context.Background()
	event := soldEvent()

	repo.On("IsEventProcessed", ctx, mock.Anything, event.EventID).Return(false, nil)
	repo.On("RecordSale", ctx, mock.Anything, event.SellerID, event.Amount, event.OccurredAt).Return(nil)
	repo.On("RecordPurchase", ctx, mock.Anything, event.BuyerID, event.Amount, event.OccurredAt).Return(errors.New("boom"))

	err := svc.ProcessItemSold(ctx, event)
	require.Error(t, err)
	repo.AssertNotCalled(t, "MarkEventProcessed", mock.Anything, mock.Anything, mock.Anything)
	assert.True(t, txManager.Last().RolledBack)
}

func TestProcessUserCreated(t *testing.T) {
	svc, repo, txManager := newTestService()
	ctx := context.Background()
	event := &events.UserCreated{EventID: uuid.New(), UserID: uuid.New(), DisplayName: "Ana"}

	repo.On("IsEventProcessed", ctx, mock.Anything, event.EventID).Return(false, nil)
	repo.On("UpsertUser", ctx, mock.Anything, event.UserID, "Ana").Return(nil)
	repo.On("MarkEventProcessed", ctx, mock.Anything, event.EventID).Return(nil)

	require.NoError(t, svc.ProcessUserCreated(ctx, event))
	assert.True(t, txManager.Last().Committed)
}

func TestTopSellers_Limits(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, DefaultLeaderboardSize},
		{"clamped", 500, MaxLeaderboardSize},
		{"as asked", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService()
			repo.On("ListTopSellers", mock.Anything, tt.want).Return([]*UserStats{}, nil)

			_, err := svc.TopSellers(context.Background(), tt.limit)
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}

	svc, _, _ := newTestService()
	_, err := svc.TopSellers(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
