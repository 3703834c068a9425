package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents a user account
type User struct {
	ID           uuid.UUID       `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"` // Store hash, exclude from JSON responses
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Summary returns the public view of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Balance: u.Balance}
}

// UserSummary is what auth endpoints hand back to clients.
type UserSummary struct {
	ID       uuid.UUID       `json:"id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

// TransactionType is the side of a ledger entry.
type TransactionType string

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

// ParseTransactionType accepts "buy"/"BUY"/" Sell " and friends.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Position is a user's open holding in one symbol. A position with
// quantity <= 0 does not exist.
type Position struct {
	UserID      uuid.UUID       `json:"user_id"`
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	AcquiredAt  time.Time       `json:"acquired_at"` // first acquisition, drives listing order
}

// Validate checks the invariants a persisted position must hold.
func (p *Position) Validate() error {
	if p.Quantity <= 0 {
		return fmt.Errorf("position %s: %w", p.Symbol, ErrInvalidQuantity)
	}
	if !p.AverageCost.IsPositive() {
		return fmt.Errorf("position %s: %w", p.Symbol, ErrInvalidPrice)
	}
	return ValidateSymbol(p.Symbol)
}

// CostBasis is quantity * average cost.
func (p *Position) CostBasis() decimal.Decimal {
	return p.AverageCost.Mul(decimal.NewFromInt(p.Quantity))
}

// Transaction is one immutable entry of the append-only trade log.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Type      TransactionType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate checks the preconditions of a ledger entry.
func (t *Transaction) Validate() error {
	if t.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !t.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if t.Type != Buy && t.Type != Sell {
		return fmt.Errorf("%w: %q", ErrInvalidAction, t.Type)
	}
	return ValidateSymbol(t.Symbol)
}

// Amount is quantity * price.
func (t *Transaction) Amount() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// WatchlistEntry is a symbol a user follows.
type WatchlistEntry struct {
	UserID  uuid.UUID `json:"user_id"`
	Symbol  string    `json:"symbol"`
	AddedAt time.Time `json:"added_at"`
}

// Quote is the current market snapshot for a symbol.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent float64         `json:"change_percent"`
	Volume        int64           `json:"volume"`
	MarketCap     int64           `json:"market_cap"`
	Sector        string          `json:"sector"`
}

// Bar is one OHLCV candle.
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}
