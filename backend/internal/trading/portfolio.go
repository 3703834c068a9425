package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/ledger"
	"github.com/user/stocksim/backend/internal/marketdata"
	"github.com/user/stocksim/backend/internal/models"
)

// Portfolio is a user's cash plus holdings marked to market.
type Portfolio struct {
	UserID uuid.UUID       `json:"user_id"`
	Cash   decimal.Decimal `json:"cash"`
	// NetWorth is cash plus the value of every priced holding.
	NetWorth decimal.Decimal `json:"net_worth"`
	*ledger.Valuation
}

func (s *Service) requireUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

// Portfolio values the user's holdings at current prices. Holdings whose
// quote is unavailable are listed but left out of the totals.
func (s *Service) Portfolio(ctx context.Context, userID uuid.UUID) (*Portfolio, error) {
	user, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.store.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	valuation, err := ledger.Valuate(ctx, holdings, marketdata.Prices(s.market))
	if err != nil {
		return nil, err
	}
	if len(valuation.Unpriced) > 0 {
		s.log.Warn().Str("user_id", userID.String()).Strs("symbols", valuation.Unpriced).Msg("holdings without a current price")
	}

	return &Portfolio{
		UserID:    userID,
		Cash:      user.Balance,
		NetWorth:  user.Balance.Add(valuation.TotalValue),
		Valuation: valuation,
	}, nil
}

// WatchlistItem is a followed symbol with its latest quote, if any.
type WatchlistItem struct {
	Symbol  string        `json:"symbol"`
	AddedAt time.Time     `json:"added_at"`
	Quote   *models.Quote `json:"quote"`
}

// Watchlist lists followed symbols. A symbol whose quote cannot be fetched
// is still listed, with a nil Quote.
func (s *Service) Watchlist(ctx context.Context, userID uuid.UUID) ([]WatchlistItem, error) {
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]WatchlistItem, 0, len(entries))
	for _, e := range entries {
		item := WatchlistItem{Symbol: e.Symbol, AddedAt: e.AddedAt}
		q, err := s.market.Quote(ctx, e.Symbol)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", e.Symbol).Msg("watchlist quote unavailable")
		} else {
			item.Quote = q
		}
		items = append(items, item)
	}
	return items, nil
}

// AddToWatchlist follows symbol after checking it resolves to a quote.
// Adding a followed symbol again is a no-op.
func (s *Service) AddToWatchlist(ctx context.Context, userID uuid.UUID, symbol string) (string, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := models.ValidateSymbol(symbol); err != nil {
		return "", err
	}
	if _, err := s.requireUser(ctx, userID); err != nil {
		return "", err
	}
	if _, err := s.currentPrice(ctx, symbol); err != nil {
		return "", err
	}
	if err := s.store.AddWatchlist(ctx, userID, symbol); err != nil {
		return "", err
	}
	return symbol, nil
}

// RemoveFromWatchlist unfollows symbol. Removing an absent symbol is a
// no-op.
func (s *Service) RemoveFromWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error {
	symbol = models.NormalizeSymbol(symbol)
	if err := models.ValidateSymbol(symbol); err != nil {
		return err
	}
	return s.store.RemoveWatchlist(ctx, userID, symbol)
}

// Transactions returns the user's trade log, newest first.
func (s *Service) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, userID, limit)
}

// Verify rebuilds positions from the transaction log and reports every
// difference from the stored holdings. An empty result means they agree.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID) ([]string, error) {
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListTransactions(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	// Replay wants oldest first.
	chronological := make([]models.Transaction, len(entries))
	for i, t := range entries {
		chronological[len(entries)-1-i] = *t
	}
	replayed, err := ledger.Replay(chronological)
	if err != nil {
		return nil, fmt.Errorf("replay transaction log: %w", err)
	}
	stored, err := s.store.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	var drift []string
	want := make(map[string]*models.Position, len(replayed))
	for _, p := range replayed {
		want[p.Symbol] = p
	}
	for _, got := range stored {
		exp, ok := want[got.Symbol]
		if !ok {
			drift = append(drift, fmt.Sprintf("%s: stored %d shares, log has none", got.Symbol, got.Quantity))
			continue
		}
		delete(want, got.Symbol)
		if got.Quantity != exp.Quantity {
			drift = append(drift, fmt.Sprintf("%s: stored %d shares, log has %d", got.Symbol, got.Quantity, exp.Quantity))
		}
		if !got.AverageCost.Equal(exp.AverageCost) {
			drift = append(drift, fmt.Sprintf("%s: stored average cost %s, log has %s", got.Symbol, got.AverageCost, exp.AverageCost))
		}
	}
	for _, p := range replayed {
		if _, missing := want[p.Symbol]; missing {
			drift = append(drift, fmt.Sprintf("%s: log has %d shares, none stored", p.Symbol, p.Quantity))
		}
	}
	return drift, nil
}
