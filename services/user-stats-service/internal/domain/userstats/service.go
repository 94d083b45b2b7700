package userstats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusbay/marketplace/pkg/database"
	"github.com/campusbay/marketplace/pkg/events"
)

type Service struct {
	repo      Repository
	txManager database.TransactionManager
	logger    *slog.Logger
}

func NewService(repo Repository, txManager database.TransactionManager, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		logger:    logger,
	}
}

// ProcessUserCreated opens the stats row of a new member.
func (s *Service) ProcessUserCreated(ctx context.Context, event *events.UserCreated) error {
	return s.applyOnce(ctx, event.EventID, func(tx pgx.Tx) error {
		return s.repo.UpsertUser(ctx, tx, event.UserID, event.DisplayName)
	})
}

// ProcessItemSold credits the seller and the buyer of a completed sale.
func (s *Service) ProcessItemSold(ctx context.Context, event *events.ItemSold) error {
	return s.applyOnce(ctx, event.EventID, func(tx pgx.Tx) error {
		if err := s.repo.RecordSale(ctx, tx, event.SellerID, event.Amount, event.OccurredAt); err != nil {
			return err
		}
		return s.repo.RecordPurchase(ctx, tx, event.BuyerID, event.Amount, event.OccurredAt)
	})
}

// applyOnce runs apply and records eventID in one transaction, so a
// redelivered event is acknowledged without being counted twice.
func (s *Service) applyOnce(ctx context.Context, eventID uuid.UUID, apply func(pgx.Tx) error) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	isProcessed, err := s.repo.IsEventProcessed(ctx, tx, eventID)
	if err != nil {
		return fmt.Errorf("failed to check idempotency: %w", err)
	}
	if isProcessed {
		s.logger.Debug("skipping duplicate event", "event_id", eventID)
		return nil
	}

	if err := apply(tx); err != nil {
		return fmt.Errorf("failed to apply event: %w", err)
	}
	if err := s.repo.MarkEventProcessed(ctx, tx, eventID); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) GetUserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	return s.repo.GetUserStats(ctx, userID)
}

// TopSellers ranks members by revenue. limit is clamped to MaxLeaderboardSize.
func (s *Service) TopSellers(ctx context.Context, limit int) ([]*UserStats, error) {
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	case limit == 0:
		limit = DefaultLeaderboardSize
	case limit > MaxLeaderboardSize:
		limit = MaxLeaderboardSize
	}
	return s.repo.ListTopSellers(ctx, limit)
}
