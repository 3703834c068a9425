package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/stocksim/backend/internal/auth"
	"github.com/user/stocksim/backend/internal/config"
	"github.com/user/stocksim/backend/internal/database"
	"github.com/user/stocksim/backend/internal/logger"
	"github.com/user/stocksim/backend/internal/marketdata"
	"github.com/user/stocksim/backend/internal/sentiment"
	"github.com/user/stocksim/backend/internal/trading"
)

const (
	tokenTTL        = 24 * time.Hour
	simTickInterval = 2 * time.Second
)

// app is the set of services every subcommand builds from config.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     database.Store
	market    *marketdata.Cached
	sim       *marketdata.SimulatedSource // nil unless MARKET_SOURCE=simulated
	sentiment *sentiment.Engine
	tokens    *auth.JWTManager
	auth      *auth.Service
	trading   *trading.Service
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat), nil
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (database.Store, error) {
	if cfg.Store == "memory" {
		log.Warn().Msg("using in-memory store, state is lost on exit")
		return database.NewMemoryStore(), nil
	}
	pg, err := database.NewPGStore(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

// newApp wires the services. The caller must call close.
func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store}

	var source marketdata.Gateway
	if cfg.MarketSource == "simulated" {
		a.sim = marketdata.NewSimulatedSource(cfg.SimulatedSymbols, log)
		source = a.sim
	} else {
		source = marketdata.NewYahooSource(log)
	}
	a.market = marketdata.NewCached(source, cfg.QuoteTTL, cfg.HistoryTTL)

	if cfg.FinnhubAPIKey == "" {
		log.Warn().Msg("FINNHUB_API_KEY not set, news and analyst components will read as unavailable")
	}
	// Articles are fetched four at a time; three rounds fit the news budget.
	articleTimeout := cfg.SourceTimeout / 3
	finnhub := sentiment.NewFinnhubClient(cfg.FinnhubURL, cfg.FinnhubAPIKey)
	a.sentiment = sentiment.NewEngine(sentiment.Config{
		News:           finnhub,
		Ratings:        finnhub,
		Text:           sentiment.NewArticleExtractor(articleTimeout),
		Market:         a.market,
		SourceTimeout:  cfg.SourceTimeout,
		ArticleTimeout: articleTimeout,
		CacheTTL:       cfg.SentimentTTL,
		Log:            log,
	})

	a.trading = trading.NewService(store, a.market, log)
	return a, nil
}

// withAuth adds the token manager and account service. Only serve needs
// them, so only serve insists on JWT_SECRET.
func (a *app) withAuth() error {
	tokens, err := auth.NewJWTManager(a.cfg.JWTSecret, tokenTTL)
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}
	a.tokens = tokens
	a.auth = auth.NewService(a.store, tokens, a.cfg.InitialBalance, a.log)
	return nil
}

func (a *app) close() {
	a.store.Close()
}
