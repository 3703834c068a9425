package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/user/stocksim/backend/internal/marketdata"
	"github.com/user/stocksim/backend/internal/models"
)

// maxBoardSymbols caps GET /sentiment?symbols= so one request cannot fan
// out without bound.
const maxBoardSymbols = 20

// Params and queries alias fasthttp buffers. Symbols end up as cache keys,
// so they are copied before leaving the handler.
func symbolParam(c *fiber.Ctx) (string, error) {
	symbol := models.NormalizeSymbol(utils.CopyString(c.Params("symbol")))
	return symbol, models.ValidateSymbol(symbol)
}

// GetQuote returns the current quote for a symbol.
// This endpoint is public.
func (h *Handler) GetQuote(c *fiber.Ctx) error {
	symbol, err := symbolParam(c)
	if err != nil {
		return h.fail(c, err, "Invalid symbol")
	}

	quote, err := h.market.Quote(c.Context(), symbol)
	if err != nil {
		return h.fail(c, err, "Market data unavailable")
	}
	return c.Status(fiber.StatusOK).JSON(quote)
}

// GetHistory returns OHLCV bars for a symbol. period and interval default
// to one day of one-minute bars.
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	symbol, err := symbolParam(c)
	if err != nil {
		return h.fail(c, err, "Invalid symbol")
	}
	period := utils.CopyString(c.Query("period", marketdata.DefaultPeriod))
	interval := utils.CopyString(c.Query("interval", marketdata.DefaultInterval))
	if _, err := marketdata.PeriodWindow(period); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if _, err := marketdata.IntervalStep(interval); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	bars, err := h.market.History(c.Context(), symbol, period, interval)
	if err != nil {
		return h.fail(c, err, "Market data unavailable")
	}
	if bars == nil {
		bars = make([]models.Bar, 0)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"symbol":   symbol,
		"period":   period,
		"interval": interval,
		"bars":     bars,
	})
}

// GetSentiment returns the composite sentiment reading for a symbol. It
// never fails because of a provider; failed sources read as neutral.
func (h *Handler) GetSentiment(c *fiber.Ctx) error {
	reading, err := h.sentiment.Composite(c.Context(), utils.CopyString(c.Params("symbol")))
	if err != nil {
		return h.fail(c, err, "Failed to compute sentiment")
	}
	return c.Status(fiber.StatusOK).JSON(reading)
}

// GetMarketSentiment returns readings for a comma-separated symbol list.
func (h *Handler) GetMarketSentiment(c *fiber.Ctx) error {
	var symbols []string
	for _, s := range strings.Split(utils.CopyString(c.Query("symbols")), ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "symbols query parameter is required"})
	}
	if len(symbols) > maxBoardSymbols {
		symbols = symbols[:maxBoardSymbols]
	}

	return c.Status(fiber.StatusOK).JSON(h.sentiment.Market(c.Context(), symbols))
}
