package marketdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/models"
)

// defaultPrices seeds well-known symbols; any other configured symbol
// starts at 100.
var defaultPrices = map[string]float64{
	"AAPL":  190.00,
	"MSFT":  410.00,
	"GOOGL": 140.00,
	"AMZN":  180.00,
	"NVDA":  120.00,
	"TSLA":  240.00,
	"^VIX":  18.00,
}

type simQuote struct {
	price float64
	open  float64 // price at start of the session, for change percent
	vol   int64
}

// SimulatedSource is an offline market that random-walks prices for a
// fixed symbol universe.
type SimulatedSource struct {
	mu     sync.RWMutex
	quotes map[string]*simQuote
	rng    *rand.Rand
	log    zerolog.Logger
	now    func() time.Time
}

// NewSimulatedSource creates a market for symbols.
func NewSimulatedSource(symbols []string, log zerolog.Logger) *SimulatedSource {
	s := &SimulatedSource{
		quotes: make(map[string]*simQuote, len(symbols)),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    log.With().Str("component", "simulated-market").Logger(),
		now:    time.Now,
	}
	for _, sym := range symbols {
		sym = models.NormalizeSymbol(sym)
		price, ok := defaultPrices[sym]
		if !ok {
			price = 100
		}
		s.quotes[sym] = &simQuote{price: price, open: price, vol: 1_000_000}
	}
	return s
}

// Run perturbs prices every interval until ctx is cancelled.
func (s *SimulatedSource) Run(ctx context.Context, interval time.Duration) {
	s.log.Info().Dur("interval", interval).Int("symbols", len(s.quotes)).Msg("starting simulated price ticker")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step moves every price by up to +/-0.5%.
func (s *SimulatedSource) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.quotes {
		changePercent := (s.rng.Float64() - 0.5) / 100
		newPrice := q.price * (1 + changePercent)
		if newPrice <= 0 {
			newPrice = q.price * 0.1
		}
		q.price = newPrice
		q.vol += int64(s.rng.Intn(10_000))
	}
}

// SetPrice pins the price of a symbol, adding it to the universe if needed.
func (s *SimulatedSource) SetPrice(symbol string, price float64) {
	symbol = models.NormalizeSymbol(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[symbol]
	if !ok {
		s.quotes[symbol] = &simQuote{price: price, open: price, vol: 1_000_000}
		return
	}
	q.price = price
}

// Quote returns the current simulated price.
func (s *SimulatedSource) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = models.NormalizeSymbol(symbol)
	s.mu.RLock()
	q, ok := s.quotes[symbol]
	var snap simQuote
	if ok {
		snap = *q
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidSymbol, symbol)
	}

	return &models.Quote{
		Symbol:        symbol,
		Name:          symbol,
		Price:         decimal.NewFromFloat(snap.price).Round(2),
		ChangePercent: (snap.price - snap.open) / snap.open * 100,
		Volume:        snap.vol,
		Sector:        "Simulated",
	}, nil
}

// History synthesizes bars ending at the current price. The walk is seeded
// from the symbol and the window so repeated calls agree with each other.
func (s *SimulatedSource) History(ctx context.Context, symbol, period, interval string) ([]models.Bar, error) {
	window, err := PeriodWindow(period)
	if err != nil {
		return nil, err
	}
	step, err := IntervalStep(interval)
	if err != nil {
		return nil, err
	}
	q, err := s.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	n := int(window / step)
	if n < 1 {
		n = 1
	}
	if n > 2000 {
		n = 2000
	}

	h := fnv.New64a()
	h.Write([]byte(q.Symbol + period + interval))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	end := s.now().Truncate(step)
	closes := make([]float64, n)
	closes[n-1] = q.Price.InexactFloat64()
	for i := n - 2; i >= 0; i-- {
		closes[i] = closes[i+1] / (1 + (rng.Float64()-0.5)/100)
	}

	bars := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		open := closes[i]
		if i > 0 {
			open = closes[i-1]
		}
		high := max(open, closes[i]) * (1 + rng.Float64()/400)
		low := min(open, closes[i]) * (1 - rng.Float64()/400)
		bars[i] = models.Bar{
			Timestamp: end.Add(-time.Duration(n-1-i) * step),
			Open:      decimal.NewFromFloat(open).Round(2),
			High:      decimal.NewFromFloat(high).Round(2),
			Low:       decimal.NewFromFloat(low).Round(2),
			Close:     decimal.NewFromFloat(closes[i]).Round(2),
			Volume:    int64(1_000 + rng.Intn(50_000)),
		}
	}
	return bars, nil
}
