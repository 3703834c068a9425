package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/user/stocksim/backend/internal/cache"
	"github.com/user/stocksim/backend/internal/models"
)

// Cached bounds the call rate to an upstream Gateway with two TTL caches.
// Failures are never cached.
type Cached struct {
	src    Gateway
	quotes *cache.TTL[*models.Quote]
	bars   *cache.TTL[[]models.Bar]
}

// NewCached wraps src. Typical TTLs are an hour for quotes and a minute
// for bars.
func NewCached(src Gateway, quoteTTL, historyTTL time.Duration, opts ...cache.Option) *Cached {
	return &Cached{
		src:    src,
		quotes: cache.New[*models.Quote](quoteTTL, opts...),
		bars:   cache.New[[]models.Bar](historyTTL, opts...),
	}
}

func (c *Cached) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = models.NormalizeSymbol(symbol)
	q, err := c.quotes.GetOrLoad(ctx, symbol, func(ctx context.Context) (*models.Quote, error) {
		return c.src.Quote(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	cp := *q
	return &cp, nil
}

func (c *Cached) History(ctx context.Context, symbol, period, interval string) ([]models.Bar, error) {
	symbol = models.NormalizeSymbol(symbol)
	key := strings.Join([]string{symbol, strings.ToLower(period), strings.ToLower(interval)}, "|")
	bars, err := c.bars.GetOrLoad(ctx, key, func(ctx context.Context) ([]models.Bar, error) {
		return c.src.History(ctx, symbol, period, interval)
	})
	if err != nil {
		return nil, err
	}
	return append([]models.Bar(nil), bars...), nil
}

// Cleanup drops expired quotes and bars every interval until ctx is
// cancelled.
func (c *Cached) Cleanup(ctx context.Context, interval time.Duration) {
	go c.bars.Janitor(ctx, interval)
	c.quotes.Janitor(ctx, interval)
}
