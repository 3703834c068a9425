package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/analysis"
	"github.com/user/stocksim/backend/internal/auth"
	"github.com/user/stocksim/backend/internal/database"
	"github.com/user/stocksim/backend/internal/marketdata"
	"github.com/user/stocksim/backend/internal/sentiment"
	"github.com/user/stocksim/backend/internal/trading"
)

type emptyNews struct{}

func (emptyNews) CompanyNews(context.Context, string, time.Time, time.Time) ([]sentiment.NewsItem, error) {
	return nil, nil
}

type emptyRatings struct{}

func (emptyRatings) Recommendations(context.Context, string) ([]sentiment.AnalystCounts, error) {
	return nil, nil
}

type testServer struct {
	app    *fiber.App
	market *marketdata.SimulatedSource
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	store := database.NewMemoryStore()
	market := marketdata.NewSimulatedSource([]string{"AAPL", "MSFT"}, log)
	market.SetPrice("AAPL", 100)

	tokens, err := auth.NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}
	engine := sentiment.NewEngine(sentiment.Config{
		News:          emptyNews{},
		Ratings:       emptyRatings{},
		Market:        market,
		SourceTimeout: time.Second,
		Log:           log,
	})

	h := New(
		auth.NewService(store, tokens, decimal.RequireFromString("100000.00"), log),
		trading.NewService(store, market, log),
		market,
		engine,
		analysis.NewService(market, log),
		log,
	)
	app := fiber.New()
	SetupRoutes(app, h, tokens, nil)
	return &testServer{app: app, market: market}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test(%s %s) failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	} else {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}

// register returns the session token and user id.
func (s *testServer) register(t *testing.T, username string) (string, string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": username, "password": "pw"})
	if status != fiber.StatusCreated {
		t.Fatalf("register status=%d body=%v", status, body)
	}
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/api/health", "", nil)
	if status != fiber.StatusOK || body["status"] != "ok" {
		t.Fatalf("health status=%d body=%v", status, body)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice")

	tests := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{"duplicate username", "/api/auth/register", map[string]string{"username": "alice", "password": "pw"}, fiber.StatusConflict},
		{"empty password", "/api/auth/register", map[string]string{"username": "bob"}, fiber.StatusBadRequest},
		{"wrong password", "/api/auth/login", map[string]string{"username": "alice", "password": "nope"}, fiber.StatusUnauthorized},
		{"unknown user", "/api/auth/login", map[string]string{"username": "carol", "password": "pw"}, fiber.StatusUnauthorized},
		{"login", "/api/auth/login", map[string]string{"username": "alice", "password": "pw"}, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, tt.path, "", tt.body)
			if status != tt.want {
				t.Fatalf("status=%d, expected %d (body=%v)", status, tt.want, body)
			}
		})
	}
}

func TestTradeFlow(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.register(t, "alice")

	status, body := s.do(t, http.MethodPost, "/api/trade", token, map[string]any{"symbol": "aapl", "quantity": 10, "action": "BUY"})
	if status != fiber.StatusOK {
		t.Fatalf("buy status=%d body=%v", status, body)
	}
	if body["message"] != "Successfully bought 10 shares of AAPL at $100.00" {
		t.Fatalf("message=%v", body["message"])
	}
	if body["balance"] != "99000" {
		t.Fatalf("balance=%v, expected 99000", body["balance"])
	}

	rejections := []struct {
		name string
		body map[string]any
		want int
	}{
		{"insufficient funds", map[string]any{"symbol": "AAPL", "quantity": 10000, "action": "BUY"}, fiber.StatusBadRequest},
		{"insufficient shares", map[string]any{"symbol": "AAPL", "quantity": 11, "action": "SELL"}, fiber.StatusBadRequest},
		{"unknown symbol", map[string]any{"symbol": "ZZZZ", "quantity": 1, "action": "BUY"}, fiber.StatusBadRequest},
		{"bad action", map[string]any{"symbol": "AAPL", "quantity": 1, "action": "HOLD"}, fiber.StatusBadRequest},
		{"zero quantity", map[string]any{"symbol": "AAPL", "quantity": 0, "action": "BUY"}, fiber.StatusBadRequest},
		{"someone else's account", map[string]any{"userId": "00000000-0000-0000-0000-000000000001", "symbol": "AAPL", "quantity": 1, "action": "BUY"}, fiber.StatusForbidden},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/api/trade", token, tt.body)
			if status != tt.want {
				t.Fatalf("status=%d, expected %d (body=%v)", status, tt.want, body)
			}
			if _, ok := body["error"]; !ok {
				t.Fatalf("expected an error field, got %v", body)
			}
		})
	}

	status, body = s.do(t, http.MethodGet, "/api/portfolio/"+userID, token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("portfolio status=%d body=%v", status, body)
	}
	if body["cash"] != "99000" {
		t.Fatalf("cash=%v, expected 99000 after rejected trades", body["cash"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/transactions/"+userID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("transactions request failed: %v", err)
	}
	var entries []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode transactions: %v", err)
	}
	resp.Body.Close()
	if len(entries) != 1 || entries[0]["type"] != "BUY" {
		t.Fatalf("transactions=%v, expected a single BUY", entries)
	}
}

func TestProtectedRoutes(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.register(t, "alice")
	_, otherID := s.register(t, "bob")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/portfolio/" + userID, "", fiber.StatusUnauthorized},
		{"other user", http.MethodGet, "/api/portfolio/" + otherID, token, fiber.StatusForbidden},
		{"other watchlist", http.MethodGet, "/api/watchlist/" + otherID, token, fiber.StatusForbidden},
		{"trade without token", http.MethodPost, "/api/trade", "", fiber.StatusUnauthorized},
		{"bad limit", http.MethodGet, "/api/transactions/" + userID + "?limit=-1", token, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := s.do(t, tt.method, tt.path, tt.token, nil)
			if status != tt.want {
				t.Fatalf("status=%d, expected %d", status, tt.want)
			}
		})
	}
}

func TestWatchlist(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.register(t, "alice")
	path := "/api/watchlist/" + userID

	for i := 0; i < 2; i++ {
		status, body := s.do(t, http.MethodPost, path, token, map[string]string{"symbol": "msft"})
		if status != fiber.StatusOK || body["symbol"] != "MSFT" {
			t.Fatalf("add #%d status=%d body=%v", i, status, body)
		}
	}
	if status, _ := s.do(t, http.MethodPost, path, token, map[string]string{"symbol": "ZZZZ"}); status != fiber.StatusBadRequest {
		t.Fatalf("unknown symbol status=%d, expected 400", status)
	}

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("watchlist request failed: %v", err)
	}
	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode watchlist: %v", err)
	}
	resp.Body.Close()
	if len(items) != 1 || items[0]["symbol"] != "MSFT" {
		t.Fatalf("watchlist=%v, expected [MSFT]", items)
	}

	for i := 0; i < 2; i++ {
		if status, body := s.do(t, http.MethodDelete, path+"/MSFT", token, nil); status != fiber.StatusOK {
			t.Fatalf("remove #%d status=%d body=%v", i, status, body)
		}
	}
}

func TestMarketEndpoints(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"quote", "/api/quote/aapl", fiber.StatusOK},
		{"unknown quote", "/api/quote/ZZZZ", fiber.StatusBadRequest},
		{"malformed quote", "/api/quote/not-a-symbol!", fiber.StatusBadRequest},
		{"history", "/api/history/AAPL?period=5d&interval=1h", fiber.StatusOK},
		{"history bad period", "/api/history/AAPL?period=7w", fiber.StatusBadRequest},
		{"history bad interval", "/api/history/AAPL?interval=3m", fiber.StatusBadRequest},
		{"sentiment", "/api/sentiment/AAPL", fiber.StatusOK},
		{"sentiment malformed", "/api/sentiment/a%20b", fiber.StatusBadRequest},
		{"sentiment unknown", "/api/sentiment/ZZZZ", fiber.StatusBadRequest},
		{"market sentiment", "/api/sentiment?symbols=AAPL,MSFT", fiber.StatusOK},
		{"market sentiment empty", "/api/sentiment?symbols=", fiber.StatusBadRequest},
		{"search", "/api/search?q=apple", fiber.StatusOK},
		{"search empty", "/api/search?q=", fiber.StatusBadRequest},
		{"prediction", "/api/prediction/AAPL?days=10", fiber.StatusOK},
		{"prediction bad days", "/api/prediction/AAPL?days=0", fiber.StatusBadRequest},
		{"prediction unknown", "/api/prediction/ZZZZ", fiber.StatusBadRequest},
		{"overview", "/api/overview?period=5d&symbols=AAPL,MSFT", fiber.StatusOK},
		{"overview bad period", "/api/overview?period=7w", fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodGet, tt.path, "", nil)
			if status != tt.want {
				t.Fatalf("status=%d, expected %d (body=%v)", status, tt.want, body)
			}
		})
	}

	status, body := s.do(t, http.MethodGet, "/api/quote/AAPL", "", nil)
	if status != fiber.StatusOK || body["price"] != "100" {
		t.Fatalf("quote status=%d body=%v, expected price 100", status, body)
	}
	_, body = s.do(t, http.MethodGet, "/api/sentiment/AAPL", "", nil)
	if body["label"] != "neutral" {
		t.Fatalf("label=%v, expected neutral with no data", body["label"])
	}

	_, body = s.do(t, http.MethodGet, "/api/search?q=Microsoft", "", nil)
	match, _ := body["match"].(map[string]any)
	if match["symbol"] != "MSFT" {
		t.Fatalf("search match=%v, expected MSFT", body["match"])
	}
	_, body = s.do(t, http.MethodGet, "/api/prediction/AAPL?days=10", "", nil)
	if points, _ := body["points"].([]any); len(points) != 10 {
		t.Fatalf("prediction points=%v, expected 10", body["points"])
	}
	_, body = s.do(t, http.MethodGet, "/api/overview?period=5d&symbols=AAPL,ZZZZ,MSFT", "", nil)
	stocks, _ := body["stocks"].([]any)
	if len(stocks) != 2 {
		t.Fatalf("overview stocks=%v, expected AAPL and MSFT only", body["stocks"])
	}
	if first, _ := stocks[0].(map[string]any); first["symbol"] != "AAPL" {
		t.Fatalf("overview first=%v, expected input order", stocks[0])
	}
}
