// Package trading executes market orders against the ledger and serves
// the portfolio, watchlist and history views built on top of it.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/database"
	"github.com/user/stocksim/backend/internal/ledger"
	"github.com/user/stocksim/backend/internal/marketdata"
	"github.com/user/stocksim/backend/internal/models"
)

// PriceScale is the precision trades execute at.
const PriceScale = 2

// Service coordinates the market data gateway, the ledger and the store.
type Service struct {
	store  database.Store
	market marketdata.Gateway
	log    zerolog.Logger
}

// NewService creates a trading service.
func NewService(store database.Store, market marketdata.Gateway, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		market: market,
		log:    log.With().Str("component", "trading").Logger(),
	}
}

// TradeRequest is a market order for whole shares.
type TradeRequest struct {
	UserID   uuid.UUID `json:"userId"`
	Symbol   string    `json:"symbol"`
	Quantity int64     `json:"quantity"`
	Action   string    `json:"action"`
}

// TradeResult is what the caller renders after a successful trade.
type TradeResult struct {
	Message     string              `json:"message"`
	Transaction *models.Transaction `json:"transaction"`
	Balance     decimal.Decimal     `json:"balance"`
	// Position is nil when a sell closed it.
	Position *models.Position `json:"position"`
	// RealizedPL is only set for sells and is not persisted.
	RealizedPL *decimal.Decimal `json:"realized_pl,omitempty"`
}

// ExecuteTrade fills req at the current quote. The cash movement, the log
// entry and the position change commit together or not at all.
func (s *Service) ExecuteTrade(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	action, err := models.ParseTransactionType(req.Action)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, models.ErrInvalidQuantity
	}
	symbol := models.NormalizeSymbol(req.Symbol)
	if err := models.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	price, err := s.currentPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	total := price.Mul(decimal.NewFromInt(req.Quantity))

	result := &TradeResult{}
	err = s.store.WithinTx(ctx, req.UserID, func(tx database.Tx) error {
		user, err := tx.LockUser(ctx)
		if err != nil {
			return err
		}
		existing, err := tx.GetPosition(ctx, symbol)
		if err != nil {
			return err
		}

		var balance decimal.Decimal
		switch action {
		case models.Buy:
			if total.GreaterThan(user.Balance) {
				return fmt.Errorf("%w: need %s, have %s",
					models.ErrInsufficientFunds, formatUSD(total), formatUSD(user.Balance))
			}
			balance = user.Balance.Sub(total)
		case models.Sell:
			if existing == nil || existing.Quantity < req.Quantity {
				held := int64(0)
				if existing != nil {
					held = existing.Quantity
				}
				return fmt.Errorf("%w: holding %d %s, selling %d",
					models.ErrInsufficientShares, held, symbol, req.Quantity)
			}
			balance = user.Balance.Add(total)
			pl := ledger.RealizedPL(existing.AverageCost, price, req.Quantity)
			result.RealizedPL = &pl
		}

		entry := &models.Transaction{
			UserID:   req.UserID,
			Symbol:   symbol,
			Quantity: req.Quantity,
			Price:    price,
			Type:     action,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return err
		}

		next, err := ledger.Apply(existing, *entry)
		if err != nil {
			return err
		}
		if next == nil {
			err = tx.DeletePosition(ctx, symbol)
		} else {
			err = tx.SavePosition(ctx, next)
		}
		if err != nil {
			return err
		}

		if err := tx.UpdateBalance(ctx, balance); err != nil {
			return err
		}

		result.Transaction = entry
		result.Balance = balance
		result.Position = next
		return nil
	})
	if err != nil {
		s.logTradeFailure(req, symbol, err)
		return nil, err
	}

	verb := "bought"
	if action == models.Sell {
		verb = "sold"
	}
	result.Message = fmt.Sprintf("Successfully %s %d shares of %s at %s", verb, req.Quantity, symbol, formatUSD(price))

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Str("symbol", symbol).
		Str("action", string(action)).
		Int64("quantity", req.Quantity).
		Str("price", price.String()).
		Str("balance", result.Balance.String()).
		Msg("trade executed")
	return result, nil
}

// currentPrice fetches the execution price. A missing or unusable quote is
// reported as an invalid symbol.
func (s *Service) currentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := s.market.Quote(ctx, symbol)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return decimal.Zero, ctxErr
		}
		if !errors.Is(err, models.ErrInvalidSymbol) {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("quote unavailable for trade")
		}
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrInvalidSymbol, symbol)
	}
	price := q.Price.Round(PriceScale)
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s has no usable price", models.ErrInvalidSymbol, symbol)
	}
	return price, nil
}

func (s *Service) logTradeFailure(req TradeRequest, symbol string, err error) {
	ev := s.log.Warn()
	if errors.Is(err, models.ErrPersistence) {
		ev = s.log.Error()
	}
	ev.Err(err).
		Str("user_id", req.UserID.String()).
		Str("symbol", symbol).
		Str("action", strings.ToUpper(req.Action)).
		Int64("quantity", req.Quantity).
		Msg("trade rejected")
}
