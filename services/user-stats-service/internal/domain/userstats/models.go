package userstats

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrStatsNotFound = errors.New("user stats not found")
	ErrInvalidInput  = errors.New("invalid input")
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 50
)

// UserStats is the trading summary of one campus member, built from
// user.created and item.sold events.
type UserStats struct {
	UserID      uuid.UUID  `db:"user_id"`
	DisplayName string     `db:"display_name"`
	ItemsSold   int64      `db:"items_sold"`
	Revenue     int64      `db:"revenue"`
	ItemsBought int64      `db:"items_bought"`
	Spent       int64      `db:"spent"`
	LastTradeAt *time.Time `db:"last_trade_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}
