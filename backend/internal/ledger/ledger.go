// Package ledger turns BUY/SELL transactions into weighted-average-cost
// positions. It holds no pricing or storage knowledge.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/models"
)

// CostScale is the number of decimal places kept on average cost. It
// matches the NUMERIC scale of portfolio.average_price.
const CostScale = 8

// Apply computes the position that results from applying tx to existing.
// existing may be nil when the user holds no shares of tx.Symbol. A nil
// result with a nil error means the position was fully liquidated and must
// be removed. On error existing is left untouched.
func Apply(existing *models.Position, tx models.Transaction) (*models.Position, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if existing != nil && existing.Symbol != tx.Symbol {
		return nil, fmt.Errorf("ledger: transaction symbol %s does not match position %s", tx.Symbol, existing.Symbol)
	}

	switch tx.Type {
	case models.Buy:
		if existing == nil {
			return &models.Position{
				UserID:      tx.UserID,
				Symbol:      tx.Symbol,
				Quantity:    tx.Quantity,
				AverageCost: tx.Price,
				AcquiredAt:  tx.Timestamp,
			}, nil
		}
		qty := existing.Quantity + tx.Quantity
		// c' = (q*c + n*p) / (q+n)
		cost := existing.CostBasis().Add(tx.Amount())
		next := *existing
		next.Quantity = qty
		next.AverageCost = cost.Div(decimal.NewFromInt(qty)).Round(CostScale)
		return &next, nil

	case models.Sell:
		if existing == nil {
			return nil, fmt.Errorf("%w: no %s position", models.ErrInsufficientShares, tx.Symbol)
		}
		if tx.Quantity > existing.Quantity {
			return nil, fmt.Errorf("%w: holding %d %s, selling %d",
				models.ErrInsufficientShares, existing.Quantity, tx.Symbol, tx.Quantity)
		}
		qty := existing.Quantity - tx.Quantity
		if qty == 0 {
			return nil, nil
		}
		next := *existing
		next.Quantity = qty
		return &next, nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrInvalidAction, tx.Type)
}

// RealizedPL is the profit of selling qty units at price against an
// average cost. It is for display only and is not booked anywhere.
func RealizedPL(averageCost, price decimal.Decimal, qty int64) decimal.Decimal {
	return price.Sub(averageCost).Mul(decimal.NewFromInt(qty))
}

// Replay rebuilds the open positions of one user from their transaction
// log, in log order. Positions come back in order of first acquisition.
func Replay(txs []models.Transaction) ([]*models.Position, error) {
	open := make(map[string]*models.Position)
	order := make([]string, 0)

	for i, tx := range txs {
		pos, err := Apply(open[tx.Symbol], tx)
		if err != nil {
			return nil, fmt.Errorf("replay entry %d (%s %d %s): %w", i, tx.Type, tx.Quantity, tx.Symbol, err)
		}
		if _, seen := open[tx.Symbol]; !seen {
			order = append(order, tx.Symbol)
		}
		if pos == nil {
			delete(open, tx.Symbol)
			order = removeSymbol(order, tx.Symbol)
			continue
		}
		open[tx.Symbol] = pos
	}

	out := make([]*models.Position, 0, len(order))
	for _, sym := range order {
		out = append(out, open[sym])
	}
	return out, nil
}

func removeSymbol(syms []string, sym string) []string {
	for i, s := range syms {
		if s == sym {
			return append(syms[:i], syms[i+1:]...)
		}
	}
	return syms
}
