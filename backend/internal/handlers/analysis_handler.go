package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/user/stocksim/backend/internal/analysis"
	"github.com/user/stocksim/backend/internal/models"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
)

// SearchCompanies resolves free text such as "apple" or "MSFT" to tickers.
// match is the single confident hit, if any; results lists candidates.
func (h *Handler) SearchCompanies(c *fiber.Ctx) error {
	query := strings.TrimSpace(utils.CopyString(c.Query("q")))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "q query parameter is required"})
	}
	limit := c.QueryInt("limit", defaultSearchLimit)
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"query":   query,
		"match":   h.analysis.Match(query),
		"results": h.analysis.Search(query, limit),
	})
}

// GetPrediction projects a symbol's daily closes forward with a 95% band.
func (h *Handler) GetPrediction(c *fiber.Ctx) error {
	symbol, err := symbolParam(c)
	if err != nil {
		return h.fail(c, err, "Invalid symbol")
	}
	days := c.QueryInt("days", analysis.DefaultProjectionDays)
	if days <= 0 || days > analysis.MaxProjectionDays {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days must be between 1 and 365"})
	}

	projection, err := h.analysis.Predict(c.Context(), symbol, days)
	if errors.Is(err, analysis.ErrNotEnoughHistory) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return h.fail(c, err, "Market data unavailable")
	}
	return c.Status(fiber.StatusOK).JSON(projection)
}

// GetOverview returns the large-cap board's moves over period (default 1d).
func (h *Handler) GetOverview(c *fiber.Ctx) error {
	period := utils.CopyString(c.Query("period", "1d"))
	var symbols []string
	for _, s := range strings.Split(utils.CopyString(c.Query("symbols")), ",") {
		if s = models.NormalizeSymbol(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) > maxBoardSymbols {
		symbols = symbols[:maxBoardSymbols]
	}

	rows, err := h.analysis.Overview(c.Context(), symbols, period)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"period": period, "stocks": rows})
}
