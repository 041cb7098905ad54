// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"trade-journal/internal/models"
)

// JournalStore defines the interface for journal persistence. Every trade
// operation is scoped to a user: a trade owned by another user behaves as if
// it did not exist.
type JournalStore interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error

	// Trades
	InsertTrade(ctx context.Context, trade *models.Trade) error
	GetTrade(ctx context.Context, userID, tradeID int64) (*models.Trade, error)
	ListTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)
	CloseTrade(ctx context.Context, userID, tradeID int64, tc TradeClose) error
	DeleteTrade(ctx context.Context, userID, tradeID int64) error
	DeleteUserTrades(ctx context.Context, userID int64) (int64, error)
	SetScreenshot(ctx context.Context, userID, tradeID int64, kind models.ScreenshotKind, file string) error

	// Tags
	ListTags(ctx context.Context) ([]models.Tag, error)
	CreateTag(ctx context.Context, tag *models.Tag) error
	GetTag(ctx context.Context, id int64) (*models.Tag, error)
	AttachTag(ctx context.Context, userID, tradeID, tagID int64) error
	DetachTag(ctx context.Context, userID, tradeID, tagID int64) error
	TradeTags(ctx context.Context, userID, tradeID int64) ([]models.Tag, error)

	// Schema
	Migrate(ctx context.Context) (*MigrationReport, error)

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying trades. UserID is required.
type TradeFilter struct {
	UserID   int64
	Status   models.TradeStatus
	ExitFrom time.Time // inclusive
	ExitTo   time.Time // exclusive
	Pair     string
	Limit    int
	// ByExit orders by exit time ascending instead of entry time descending.
	ByExit bool
}

// ClosedSince returns the filter for a user's closed trades exited at or
// after from, in exit order.
func ClosedSince(userID int64, from time.Time) TradeFilter {
	return TradeFilter{UserID: userID, Status: models.StatusClosed, ExitFrom: from, ByExit: true}
}

// ClosedBetween returns the filter for a user's closed trades exited in
// [from, to), in exit order.
func ClosedBetween(userID int64, from, to time.Time) TradeFilter {
	return TradeFilter{UserID: userID, Status: models.StatusClosed, ExitFrom: from, ExitTo: to, ByExit: true}
}

// TradeClose holds the values written when a trade is closed.
type TradeClose struct {
	ExitPrice  float64
	ExitTime   time.Time
	ProfitLoss float64
}
