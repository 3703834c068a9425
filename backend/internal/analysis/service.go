package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/user/stocksim/backend/internal/marketdata"
	"github.com/user/stocksim/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	overviewConcurrency = 4
	projectionPeriod    = "1y"
	projectionInterval  = "1d"
)

// OverviewSymbols is the default large-cap board.
var OverviewSymbols = []string{
	"AAPL", "MSFT", "AMZN", "GOOGL", "META",
	"NVDA", "BRK-B", "JPM", "JNJ", "V",
	"PG", "XOM", "MA", "HD", "CVX",
	"BAC", "KO", "PFE", "ABBV", "WMT",
}

// OverviewRow is one symbol's move over the requested period.
type OverviewRow struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         string  `json:"price"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	Sector        string  `json:"sector"`
}

// Service answers search, projection and overview requests.
type Service struct {
	market  marketdata.Gateway
	matcher *Matcher
	log     zerolog.Logger
}

// NewService creates a Service searching over DefaultCompanies.
func NewService(market marketdata.Gateway, log zerolog.Logger) *Service {
	return &Service{
		market:  market,
		matcher: NewMatcher(DefaultCompanies),
		log:     log.With().Str("component", "analysis").Logger(),
	}
}

// Match resolves query to a single listing, or nil.
func (s *Service) Match(query string) *CompanyMatch {
	return s.matcher.Match(query)
}

// Search lists candidate listings for query.
func (s *Service) Search(query string, limit int) []CompanyMatch {
	return s.matcher.Search(query, limit)
}

// Predict projects symbol's daily closes over the last year days ahead.
func (s *Service) Predict(ctx context.Context, symbol string, days int) (*Projection, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := models.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	bars, err := s.market.History(ctx, symbol, projectionPeriod, projectionInterval)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", symbol, err)
	}
	return Project(symbol, bars, days)
}

// Overview reports each symbol's change over period, in input order.
// Symbols without history or a quote are skipped.
func (s *Service) Overview(ctx context.Context, symbols []string, period string) ([]OverviewRow, error) {
	if _, err := marketdata.PeriodWindow(period); err != nil {
		return nil, err
	}
	interval := "1d"
	if period == "1d" {
		interval = "1m"
	}
	if len(symbols) == 0 {
		symbols = OverviewSymbols
	}

	rows := make([]*OverviewRow, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, raw := range symbols {
		i := i
		symbol := models.NormalizeSymbol(raw)
		if models.ValidateSymbol(symbol) != nil {
			continue
		}
		g.Go(func() error {
			row, err := s.overviewRow(gctx, symbol, period, interval)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping overview row")
				return nil
			}
			rows[i] = row
			return nil
		})
	}
	_ = g.Wait()

	out := make([]OverviewRow, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *Service) overviewRow(ctx context.Context, symbol, period, interval string) (*OverviewRow, error) {
	bars, err := s.market.History(ctx, symbol, period, interval)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no history for %s", symbol)
	}
	q, err := s.market.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	first, last := bars[0].Close, bars[len(bars)-1].Close
	var change float64
	if first.IsPositive() {
		change = last.Sub(first).Div(first).Shift(2).Round(2).InexactFloat64()
	}
	return &OverviewRow{
		Symbol:        symbol,
		Name:          q.Name,
		Price:         q.Price.StringFixed(2),
		ChangePercent: change,
		Volume:        q.Volume,
		Sector:        q.Sector,
	}, nil
}
