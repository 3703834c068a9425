package sentiment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/stocksim/backend/internal/marketdata"
	"golang.org/x/sync/errgroup"
)

const (
	newsLookback    = 7 * 24 * time.Hour
	maxArticles     = 10
	fearIndexSymbol = "^VIX"
	fearBaseline    = 15.0
	fearRange       = 35.0
)

// articleConcurrency bounds parallel article fetches per symbol.
const articleConcurrency = 4

// NewsSource averages the polarity of the most recent articles about a
// symbol.
type NewsSource struct {
	News   NewsProvider
	Text   TextSource
	Scorer PolarityScorer
	Log    zerolog.Logger
	Now    func() time.Time
	// ArticleTimeout bounds each article fetch. Zero means only ctx applies.
	ArticleTimeout time.Duration
}

// Score returns the mean polarity of up to ten articles from the last
// seven days, with confidence = scored/10. If ctx expires while articles
// are being fetched, the articles scored so far are used.
func (s *NewsSource) Score(ctx context.Context, symbol string) Signal {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	to := now()
	items, err := s.News.CompanyNews(ctx, symbol, to.Add(-newsLookback), to)
	if err != nil {
		s.Log.Warn().Err(err).Str("symbol", symbol).Str("source", "news").Msg("news fetch failed")
		return neutral(Failed)
	}
	if len(items) == 0 {
		return neutral(NoData)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
	if len(items) > maxArticles {
		items = items[:maxArticles]
	}

	var (
		mu     sync.Mutex
		sum    float64
		scored int
	)
	// The fan-out runs off this goroutine: g.Go blocks once the limit is
	// reached and must not hold up the deadline below.
	done := make(chan struct{})
	go func() {
		defer close(done)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(articleConcurrency)
		for _, item := range items {
			item := item
			g.Go(func() error {
				polarity, ok := s.scoreArticle(gctx, symbol, item)
				if ok {
					mu.Lock()
					sum += polarity
					scored++
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Log.Debug().Str("symbol", symbol).Msg("news deadline reached, using articles scored so far")
	}

	mu.Lock()
	total, n := sum, scored
	mu.Unlock()
	if n == 0 {
		if ctx.Err() != nil {
			return neutral(Failed)
		}
		return neutral(NoData)
	}
	return Signal{
		Score:      clamp(total/float64(n), -1, 1),
		Confidence: float64(n) / maxArticles,
		Status:     Available,
	}
}

func (s *NewsSource) scoreArticle(ctx context.Context, symbol string, item NewsItem) (float64, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	if s.ArticleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ArticleTimeout)
		defer cancel()
	}
	text, err := s.Text.ArticleText(ctx, item)
	if err != nil {
		s.Log.Debug().Err(err).Str("symbol", symbol).Str("url", item.URL).Msg("skipping article")
		return 0, false
	}
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	return s.Scorer.Polarity(text), true
}

// Analyst recommendation weights, strongest buy to strongest sell.
const (
	strongBuyWeight  = 1.0
	buyWeight        = 0.5
	holdWeight       = 0.0
	sellWeight       = -0.5
	strongSellWeight = -1.0
)

// AnalystSource scores the latest analyst recommendation snapshot.
type AnalystSource struct {
	Ratings RatingsProvider
	Log     zerolog.Logger
}

// Score returns the weighted recommendation score and the snapshot it was
// computed from. The snapshot is nil when there is nothing to show.
func (s *AnalystSource) Score(ctx context.Context, symbol string) (Signal, *AnalystCounts) {
	snaps, err := s.Ratings.Recommendations(ctx, symbol)
	if err != nil {
		s.Log.Warn().Err(err).Str("symbol", symbol).Str("source", "analyst").Msg("recommendation fetch failed")
		return neutral(Failed), nil
	}
	if len(snaps) == 0 {
		return neutral(NoData), nil
	}

	latest := snaps[0]
	for _, snap := range snaps[1:] {
		if snap.Period > latest.Period {
			latest = snap
		}
	}
	signal := AnalystScore(latest)
	if latest.Total() <= 0 {
		return signal, nil
	}
	return signal, &latest
}

// AnalystScore applies the recommendation weights to one snapshot.
func AnalystScore(c AnalystCounts) Signal {
	total := c.Total()
	if total <= 0 {
		return neutral(NoData)
	}
	weighted := float64(c.StrongBuy)*strongBuyWeight +
		float64(c.Buy)*buyWeight +
		float64(c.Hold)*holdWeight +
		float64(c.Sell)*sellWeight +
		float64(c.StrongSell)*strongSellWeight
	return Signal{
		Score:      clamp(weighted/float64(total), -1, 1),
		Confidence: 1,
		Status:     Available,
	}
}

// FearSource derives market-wide sentiment from the volatility index.
type FearSource struct {
	Market marketdata.Gateway
	Log    zerolog.Logger
}

// Score reads a five-day daily series of the index.
func (s *FearSource) Score(ctx context.Context) FearReading {
	bars, err := s.Market.History(ctx, fearIndexSymbol, "5d", "1d")
	if err != nil {
		s.Log.Warn().Err(err).Str("source", "fear").Msg("volatility index fetch failed")
		return FearReading{Signal: neutral(Failed)}
	}
	if len(bars) == 0 {
		return FearReading{Signal: neutral(NoData)}
	}

	latest := bars[len(bars)-1].Close.InexactFloat64()
	change := 0.0
	if len(bars) > 1 {
		if prev := bars[len(bars)-2].Close.InexactFloat64(); prev > 0 {
			change = (latest - prev) / prev * 100
		}
	}
	return FearReading{
		Signal: Signal{
			Score:      FearScore(latest),
			Confidence: 1,
			Status:     Available,
		},
		Level:  latest,
		Change: change,
	}
}

// FearScore maps an index level to sentiment: 15 is neutral, 50 and above
// is maximum fear.
func FearScore(level float64) float64 {
	return -clamp((level-fearBaseline)/fearRange, -1, 1)
}
