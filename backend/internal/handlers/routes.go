package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/user/stocksim/backend/internal/auth"
	"github.com/user/stocksim/backend/internal/middleware"
)

// Health reports liveness.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// SetupRoutes mounts the API under /api. limiter may be nil.
func SetupRoutes(app *fiber.App, h *Handler, tokens *auth.JWTManager, limiter *middleware.IPRateLimiter) {
	api := app.Group("/api", middleware.RequestID(), middleware.RequestLogger(h.log))
	if limiter != nil {
		api.Use(limiter.Handler())
	}

	// Public
	api.Get("/health", h.Health)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", h.Register)
	authGroup.Post("/login", h.Login)

	api.Get("/quote/:symbol", h.GetQuote)
	api.Get("/history/:symbol", h.GetHistory)
	api.Get("/sentiment", h.GetMarketSentiment)
	api.Get("/sentiment/:symbol", h.GetSentiment)
	api.Get("/search", h.SearchCompanies)
	api.Get("/prediction/:symbol", h.GetPrediction)
	api.Get("/overview", h.GetOverview)

	// Protected
	protected := middleware.Protected(tokens)
	self := middleware.RequireSelf("userId")

	api.Post("/trade", protected, h.ExecuteTrade)
	api.Get("/portfolio/:userId", protected, self, h.GetPortfolio)
	api.Get("/transactions/:userId", protected, self, h.GetTransactions)

	api.Get("/watchlist/:userId", protected, self, h.GetWatchlist)
	api.Post("/watchlist/:userId", protected, self, h.AddToWatchlist)
	api.Delete("/watchlist/:userId/:symbol", protected, self, h.RemoveFromWatchlist)
}
