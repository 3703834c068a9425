package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/models"
)

// PriceLookup resolves the current price of a symbol.
type PriceLookup interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PriceLookupFunc adapts a function to PriceLookup.
type PriceLookupFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

func (f PriceLookupFunc) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f(ctx, symbol)
}

// HoldingValue is one position marked to market.
type HoldingValue struct {
	Symbol              string          `json:"symbol"`
	Quantity            int64           `json:"quantity"`
	AverageCost         decimal.Decimal `json:"average_cost"`
	CostBasis           decimal.Decimal `json:"cost_basis"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	MarketValue         decimal.Decimal `json:"market_value"`
	UnrealizedPL        decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPercent decimal.Decimal `json:"unrealized_pl_percent"`
	PriceAvailable      bool            `json:"price_available"`
}

// Valuation is a portfolio marked to market. Totals only include holdings
// whose price could be resolved.
type Valuation struct {
	Holdings          []HoldingValue  `json:"holdings"`
	TotalValue        decimal.Decimal `json:"total_value"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	TotalUnrealizedPL decimal.Decimal `json:"total_unrealized_pl"`
	Unpriced          []string        `json:"unpriced,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Valuate marks holdings to market. A failed lookup degrades that one
// holding to PriceAvailable=false rather than failing the whole valuation;
// only context cancellation aborts.
func Valuate(ctx context.Context, holdings []*models.Position, prices PriceLookup) (*Valuation, error) {
	v := &Valuation{
		Holdings:          make([]HoldingValue, 0, len(holdings)),
		TotalValue:        decimal.Zero,
		TotalCost:         decimal.Zero,
		TotalUnrealizedPL: decimal.Zero,
	}

	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hv := HoldingValue{
			Symbol:      h.Symbol,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
			CostBasis:   h.CostBasis(),
		}

		price, err := prices.CurrentPrice(ctx, h.Symbol)
		if err != nil || !price.IsPositive() {
			v.Unpriced = append(v.Unpriced, h.Symbol)
			v.Holdings = append(v.Holdings, hv)
			continue
		}

		qty := decimal.NewFromInt(h.Quantity)
		hv.PriceAvailable = true
		hv.CurrentPrice = price
		hv.MarketValue = price.Mul(qty)
		hv.UnrealizedPL = price.Sub(h.AverageCost).Mul(qty)
		if hv.CostBasis.IsPositive() {
			hv.UnrealizedPLPercent = hv.UnrealizedPL.Div(hv.CostBasis).Mul(hundred).Round(4)
		}

		v.TotalValue = v.TotalValue.Add(hv.MarketValue)
		v.TotalCost = v.TotalCost.Add(hv.CostBasis)
		v.TotalUnrealizedPL = v.TotalUnrealizedPL.Add(hv.UnrealizedPL)
		v.Holdings = append(v.Holdings, hv)
	}
	return v, nil
}
