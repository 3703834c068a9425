package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/models"
)

// YahooSource reads quotes and bars from Yahoo Finance.
type YahooSource struct {
	log zerolog.Logger
	now func() time.Time
}

// NewYahooSource creates a Yahoo Finance backed source.
func NewYahooSource(log zerolog.Logger) *YahooSource {
	return &YahooSource{log: log.With().Str("component", "yahoo").Logger(), now: time.Now}
}

// Quote gets current quote data for a symbol.
func (y *YahooSource) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := models.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := quote.Get(symbol)
	if err != nil {
		y.log.Warn().Err(err).Str("symbol", symbol).Msg("quote request failed")
		return nil, fmt.Errorf("%w: quote %s: %v", models.ErrUpstreamUnavailable, symbol, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidSymbol, symbol)
	}

	name := q.ShortName
	if name == "" {
		name = symbol
	}
	return &models.Quote{
		Symbol:        symbol,
		Name:          name,
		Price:         decimal.NewFromFloat(q.RegularMarketPrice),
		ChangePercent: q.RegularMarketChangePercent,
		Volume:        int64(q.RegularMarketVolume),
		Sector:        "N/A",
	}, nil
}

// History gets OHLCV bars covering period at the given interval, oldest first.
func (y *YahooSource) History(ctx context.Context, symbol, period, interval string) ([]models.Bar, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := models.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	window, err := PeriodWindow(period)
	if err != nil {
		return nil, err
	}
	if _, err := IntervalStep(interval); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := y.now()
	start := end.Add(-window)
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.Interval(interval),
	}

	iter := chart.Get(params)
	bars := make([]models.Bar, 0)
	for iter.Next() {
		bar := iter.Bar()
		bars = append(bars, models.Bar{
			Timestamp: time.Unix(int64(bar.Timestamp), 0).UTC(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		y.log.Warn().Err(err).Str("symbol", symbol).Str("period", period).Msg("history request failed")
		return nil, fmt.Errorf("%w: history %s: %v", models.ErrUpstreamUnavailable, symbol, err)
	}
	return bars, nil
}
