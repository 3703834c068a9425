// Package database persists users, positions, the transaction log and
// watchlists. Lookups return nil, nil when the row does not exist.
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/models"
)

// Store is the persistence boundary shared by the Postgres and in-memory
// backends.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string, balance decimal.Decimal) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetHoldings lists open positions in order of first acquisition.
	GetHoldings(ctx context.Context, userID uuid.UUID) ([]*models.Position, error)
	// ListTransactions returns the newest entries first. limit <= 0 means all.
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error)

	ListWatchlist(ctx context.Context, userID uuid.UUID) ([]*models.WatchlistEntry, error)
	// AddWatchlist is a no-op when the symbol is already followed.
	AddWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error
	// RemoveWatchlist is a no-op when the symbol is not followed.
	RemoveWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error

	// WithinTx runs fn in a transaction scoped to one user. Every write made
	// through the Tx commits together when fn returns nil and is discarded
	// otherwise.
	WithinTx(ctx context.Context, userID uuid.UUID, fn func(Tx) error) error

	Close()
}

// Tx is the write side of a trade. LockUser must be called first; it holds
// the user's row until the transaction ends so trades for one user
// serialize.
type Tx interface {
	LockUser(ctx context.Context) (*models.User, error)
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	UpdateBalance(ctx context.Context, balance decimal.Decimal) error
	SavePosition(ctx context.Context, pos *models.Position) error
	DeletePosition(ctx context.Context, symbol string) error
	InsertTransaction(ctx context.Context, t *models.Transaction) error
}

var (
	_ Store = (*PGStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrPersistence, op, err)
}
