package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/user/stocksim/backend/internal/trading"
)

// TradeRequest defines the expected JSON body for a market order
type TradeRequest struct {
	UserID   string `json:"userId"` // optional; must match the token when set
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Action   string `json:"action"` // "BUY" or "SELL"
}

// ExecuteTrade fills a market order for the authenticated user.
func (h *Handler) ExecuteTrade(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(TradeRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if req.UserID != "" {
		bodyID, err := uuid.Parse(req.UserID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID format"})
		}
		if bodyID != userID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You do not have permission to trade for this account"})
		}
	}

	result, err := h.trading.ExecuteTrade(c.Context(), trading.TradeRequest{
		UserID:   userID,
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Action:   req.Action,
	})
	if err != nil {
		return h.fail(c, err, "Failed to execute trade")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// GetTransactions returns the user's trade history, newest first.
func (h *Handler) GetTransactions(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID format"})
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a non-negative integer"})
		}
	}

	entries, err := h.trading.Transactions(c.Context(), userID, limit)
	if err != nil {
		return h.fail(c, err, "Failed to retrieve transactions")
	}
	return c.Status(fiber.StatusOK).JSON(entries)
}
