package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

// GetPortfolio returns cash, holdings and their current valuation.
func (h *Handler) GetPortfolio(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID format"})
	}

	portfolio, err := h.trading.Portfolio(c.Context(), userID)
	if err != nil {
		return h.fail(c, err, "Failed to retrieve portfolio")
	}
	return c.Status(fiber.StatusOK).JSON(portfolio)
}

// WatchlistRequest defines the expected JSON body for following a symbol
type WatchlistRequest struct {
	Symbol string `json:"symbol"`
}

// GetWatchlist lists followed symbols with their latest quotes.
func (h *Handler) GetWatchlist(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID format"})
	}

	items, err := h.trading.Watchlist(c.Context(), userID)
	if err != nil {
		return h.fail(c, err, "Failed to retrieve watchlist")
	}
	return c.Status(fiber.StatusOK).JSON(items)
}

// AddToWatchlist follows a symbol. Adding it twice succeeds both times.
func (h *Handler) AddToWatchlist(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID format"})
	}
	req := new(WatchlistRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	symbol, err := h.trading.AddToWatchlist(c.Context(), userID, req.Symbol)
	if err != nil {
		return h.fail(c, err, "Failed to update watchlist")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": symbol + " added to watchlist", "symbol": symbol})
}

// RemoveFromWatchlist unfollows a symbol. Removing an absent one succeeds.
func (h *Handler) RemoveFromWatchlist(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID format"})
	}

	if err := h.trading.RemoveFromWatchlist(c.Context(), userID, utils.CopyString(c.Params("symbol"))); err != nil {
		return h.fail(c, err, "Failed to update watchlist")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Removed from watchlist"})
}
