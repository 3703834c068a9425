package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/user/stocksim/backend/internal/models"
)

// NewsItem is one article reference returned by a news provider.
type NewsItem struct {
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// NewsProvider lists company news published in [from, to].
type NewsProvider interface {
	CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]NewsItem, error)
}

// RatingsProvider lists analyst recommendation snapshots.
type RatingsProvider interface {
	Recommendations(ctx context.Context, symbol string) ([]AnalystCounts, error)
}

// FinnhubClient handles Finnhub API operations.
type FinnhubClient struct {
	client *resty.Client
	apiKey string
}

// NewFinnhubClient creates a new Finnhub client.
func NewFinnhubClient(baseURL, apiKey string) *FinnhubClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(10 * time.Second)

	return &FinnhubClient{client: client, apiKey: apiKey}
}

type finnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

type finnhubRecommendation struct {
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Period     string `json:"period"`
	Sell       int    `json:"sell"`
	StrongBuy  int    `json:"strongBuy"`
	StrongSell int    `json:"strongSell"`
	Symbol     string `json:"symbol"`
}

// CompanyNews gets news articles for a specific company.
func (fc *FinnhubClient) CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]NewsItem, error) {
	var raw []finnhubNews
	err := fc.get(ctx, "/company-news", map[string]string{
		"symbol": symbol,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
	}, &raw)
	if err != nil {
		return nil, err
	}

	items := make([]NewsItem, 0, len(raw))
	for _, n := range raw {
		items = append(items, NewsItem{
			Headline:    n.Headline,
			Summary:     n.Summary,
			URL:         n.URL,
			Source:      n.Source,
			PublishedAt: time.Unix(n.DateTime, 0).UTC(),
		})
	}
	return items, nil
}

// Recommendations gets the analyst recommendation trend, newest first.
func (fc *FinnhubClient) Recommendations(ctx context.Context, symbol string) ([]AnalystCounts, error) {
	var raw []finnhubRecommendation
	if err := fc.get(ctx, "/stock/recommendation", map[string]string{"symbol": symbol}, &raw); err != nil {
		return nil, err
	}

	out := make([]AnalystCounts, 0, len(raw))
	for _, r := range raw {
		out = append(out, AnalystCounts{
			Period:     r.Period,
			StrongBuy:  r.StrongBuy,
			Buy:        r.Buy,
			Hold:       r.Hold,
			Sell:       r.Sell,
			StrongSell: r.StrongSell,
		})
	}
	return out, nil
}

func (fc *FinnhubClient) get(ctx context.Context, path string, params map[string]string, out any) error {
	if fc.apiKey == "" {
		return fmt.Errorf("%w: Finnhub API key not configured", models.ErrUpstreamUnavailable)
	}

	resp, err := fc.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("token", fc.apiKey).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: finnhub %s: %v", models.ErrUpstreamUnavailable, path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: finnhub %s returned %d", models.ErrUpstreamUnavailable, path, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: finnhub %s: decode: %v", models.ErrUpstreamUnavailable, path, err)
	}
	return nil
}
