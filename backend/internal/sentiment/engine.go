package sentiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/stocksim/backend/internal/cache"
	"github.com/user/stocksim/backend/internal/marketdata"
	"github.com/user/stocksim/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

// Engine computes composite readings. Component failures never escape it:
// every call yields a structurally valid Reading.
type Engine struct {
	news    *NewsSource
	analyst *AnalystSource
	fear    *FearSource
	market  marketdata.Gateway

	timeout time.Duration
	cache   *cache.TTL[*Reading]
	log     zerolog.Logger
	now     func() time.Time
}

// Config wires an Engine.
type Config struct {
	News    NewsProvider
	Ratings RatingsProvider
	Text    TextSource
	Scorer  PolarityScorer
	Market  marketdata.Gateway

	SourceTimeout time.Duration
	// ArticleTimeout bounds each article fetch; defaults to a third of
	// SourceTimeout so slow pages cannot use up the news budget.
	ArticleTimeout time.Duration
	CacheTTL       time.Duration
	// CacheMaxEntries caps the reading cache; defaults to 256.
	CacheMaxEntries int
	CacheOptions    []cache.Option

	Log zerolog.Logger
	Now func() time.Time
}

// NewEngine builds an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	log := cfg.Log.With().Str("component", "sentiment").Logger()
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	text := cfg.Text
	if text == nil {
		text = SummaryText{}
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = NewLexiconScorer()
	}
	timeout := cfg.SourceTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	articleTimeout := cfg.ArticleTimeout
	if articleTimeout <= 0 {
		articleTimeout = timeout / 3
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxEntries := cfg.CacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	cacheOpts := append([]cache.Option{cache.WithMaxEntries(maxEntries)}, cfg.CacheOptions...)

	return &Engine{
		news:    &NewsSource{News: cfg.News, Text: text, Scorer: scorer, Log: log, Now: now, ArticleTimeout: articleTimeout},
		analyst: &AnalystSource{Ratings: cfg.Ratings, Log: log},
		fear:    &FearSource{Market: cfg.Market, Log: log},
		market:  cfg.Market,
		timeout: timeout,
		cache:   cache.New[*Reading](ttl, cacheOpts...),
		log:     log,
		now:     now,
	}
}

// Composite returns the blended reading for symbol, served from cache when
// fresh. Only an invalid or unknown symbol is an error. A reading computed
// after ctx was cancelled is returned but not cached.
func (e *Engine) Composite(ctx context.Context, symbol string) (*Reading, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := models.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	r, ok := e.cache.Get(symbol)
	if !ok {
		// Unknown tickers must not take cache slots. Other quote failures
		// leave the decision to the sources.
		if _, err := e.market.Quote(ctx, symbol); errors.Is(err, models.ErrInvalidSymbol) {
			return nil, err
		}
		r = e.compute(ctx, symbol)
		if ctx.Err() == nil {
			e.cache.Set(symbol, r)
		}
	}
	cp := *r
	return &cp, nil
}

// Cleanup drops expired readings every interval until ctx is cancelled.
func (e *Engine) Cleanup(ctx context.Context, interval time.Duration) {
	e.cache.Janitor(ctx, interval)
}

func (e *Engine) compute(ctx context.Context, symbol string) *Reading {
	var (
		news    Signal
		analyst Signal
		counts  *AnalystCounts
		fear    FearReading
	)

	type analystResult struct {
		signal Signal
		counts *AnalystCounts
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		news = runSource(gctx, e.timeout, e.log, "news", neutral(Failed), func(ctx context.Context) Signal {
			return e.news.Score(ctx, symbol)
		})
		return nil
	})
	g.Go(func() error {
		res := runSource(gctx, e.timeout, e.log, "analyst", analystResult{signal: neutral(Failed)}, func(ctx context.Context) analystResult {
			s, c := e.analyst.Score(ctx, symbol)
			return analystResult{signal: s, counts: c}
		})
		analyst, counts = res.signal, res.counts
		return nil
	})
	g.Go(func() error {
		fear = runSource(gctx, e.timeout, e.log, "fear", FearReading{Signal: neutral(Failed)}, e.fear.Score)
		return nil
	})
	_ = g.Wait()

	composite := Blend(news.Score, analyst.Score, fear.Score)
	e.log.Debug().
		Str("symbol", symbol).
		Float64("news", news.Score).
		Float64("analyst", analyst.Score).
		Float64("fear", fear.Score).
		Float64("composite", composite).
		Msg("computed sentiment")

	return &Reading{
		Symbol:        symbol,
		Composite:     composite,
		Label:         Label(composite),
		News:          news,
		Analyst:       analyst,
		Fear:          fear,
		AnalystCounts: counts,
		ComputedAt:    e.now(),
	}
}

const (
	defaultCacheEntries = 256
	partialGrace        = 50 * time.Millisecond
)

// runSource calls fn with a deadline. A timeout or panic yields fallback.
func runSource[T any](ctx context.Context, timeout time.Duration, log zerolog.Logger, name string, fallback T, fn func(context.Context) T) T {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan T, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("source", name).Str("panic", fmt.Sprint(r)).Msg("sentiment source panicked")
				done <- fallback
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case v := <-done:
		return v
	case <-ctx.Done():
	}
	// Sources that honor ctx return a partial result right after the
	// deadline; give them a moment to hand it over.
	select {
	case v := <-done:
		return v
	case <-time.After(partialGrace):
		log.Warn().Str("source", name).Dur("timeout", timeout).Msg("sentiment source timed out")
		return fallback
	}
}

// MarketRow is one line of the multi-symbol sentiment board.
type MarketRow struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Price         string   `json:"price"`
	ChangePercent float64  `json:"change_percent"`
	Reading       *Reading `json:"sentiment"`
}

const marketConcurrency = 4

// Market computes readings for many symbols. Symbols that are malformed or
// have no quote are skipped; output keeps input order.
func (e *Engine) Market(ctx context.Context, symbols []string) []MarketRow {
	rows := make([]*MarketRow, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(marketConcurrency)
	for i, raw := range symbols {
		i := i
		symbol := models.NormalizeSymbol(raw)
		if models.ValidateSymbol(symbol) != nil {
			e.log.Warn().Str("symbol", raw).Msg("skipping malformed symbol")
			continue
		}
		g.Go(func() error {
			q, err := e.market.Quote(gctx, symbol)
			if err != nil {
				e.log.Warn().Err(err).Str("symbol", symbol).Msg("no quote, skipping")
				return nil
			}
			r, err := e.Composite(gctx, symbol)
			if err != nil {
				return nil
			}
			rows[i] = &MarketRow{
				Symbol:        symbol,
				Name:          q.Name,
				Price:         q.Price.StringFixed(2),
				ChangePercent: q.ChangePercent,
				Reading:       r,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]MarketRow, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
