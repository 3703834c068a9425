// Package marketdata fetches quotes and OHLCV history. Every result may be
// stale (served from cache) or missing; callers must handle both.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/ledger"
	"github.com/user/stocksim/backend/internal/models"
)

// Gateway is the market data contract consumed by trading, valuation and
// sentiment.
//
// Quote returns models.ErrInvalidSymbol when the symbol cannot be resolved
// and models.ErrUpstreamUnavailable when the provider failed.
type Gateway interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	History(ctx context.Context, symbol, period, interval string) ([]models.Bar, error)
}

// Default history parameters.
const (
	DefaultPeriod   = "1d"
	DefaultInterval = "1m"
)

var periods = map[string]time.Duration{
	"1d":  24 * time.Hour,
	"5d":  5 * 24 * time.Hour,
	"1mo": 30 * 24 * time.Hour,
	"3mo": 91 * 24 * time.Hour,
	"6mo": 182 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
	"2y":  2 * 365 * 24 * time.Hour,
	"5y":  5 * 365 * 24 * time.Hour,
}

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"2m":  2 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"60m": time.Hour,
	"1h":  time.Hour,
	"1d":  24 * time.Hour,
	"1wk": 7 * 24 * time.Hour,
}

// PeriodWindow converts a period string like "5d" or "1mo" to a duration.
func PeriodWindow(period string) (time.Duration, error) {
	d, ok := periods[strings.ToLower(period)]
	if !ok {
		return 0, fmt.Errorf("unsupported period %q", period)
	}
	return d, nil
}

// IntervalStep converts an interval string like "1m" or "1d" to a duration.
func IntervalStep(interval string) (time.Duration, error) {
	d, ok := intervals[strings.ToLower(interval)]
	if !ok {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	return d, nil
}

// Prices adapts a Gateway to the ledger's price lookup.
func Prices(gw Gateway) ledger.PriceLookup {
	return ledger.PriceLookupFunc(func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		q, err := gw.Quote(ctx, symbol)
		if err != nil {
			return decimal.Zero, err
		}
		return q.Price, nil
	})
}
