// Package handlers exposes the trading, portfolio and market data services
// over HTTP.
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/user/stocksim/backend/internal/analysis"
	"github.com/user/stocksim/backend/internal/auth"
	"github.com/user/stocksim/backend/internal/marketdata"
	"github.com/user/stocksim/backend/internal/models"
	"github.com/user/stocksim/backend/internal/sentiment"
	"github.com/user/stocksim/backend/internal/trading"
)

// Handler holds the services the HTTP layer calls into.
type Handler struct {
	auth      *auth.Service
	trading   *trading.Service
	market    marketdata.Gateway
	sentiment *sentiment.Engine
	analysis  *analysis.Service
	log       zerolog.Logger
}

// New creates a Handler.
func New(authSvc *auth.Service, tradingSvc *trading.Service, market marketdata.Gateway, engine *sentiment.Engine, analysisSvc *analysis.Service, log zerolog.Logger) *Handler {
	return &Handler{
		auth:      authSvc,
		trading:   tradingSvc,
		market:    market,
		sentiment: engine,
		analysis:  analysisSvc,
		log:       log.With().Str("component", "http").Logger(),
	}
}

// statusFor maps the error taxonomy to an HTTP status. The bool reports
// whether the error text is safe to show the client.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, models.ErrInvalidSymbol),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInsufficientShares),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidPrice),
		errors.Is(err, models.ErrInvalidAction):
		return fiber.StatusBadRequest, true
	case errors.Is(err, models.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, true
	case errors.Is(err, models.ErrUserNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, models.ErrUsernameTaken):
		return fiber.StatusConflict, true
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return fiber.StatusBadGateway, false
	}
	return fiber.StatusInternalServerError, false
}

// fail writes err as {"error": ...}. Internal errors are logged and replaced
// with fallback so nothing about the store or providers leaks.
func (h *Handler) fail(c *fiber.Ctx, err error, fallback string) error {
	status, public := statusFor(err)
	if !public {
		h.log.Error().Err(err).Str("path", c.Path()).Int("status", status).Msg(fallback)
		return c.Status(status).JSON(fiber.Map{"error": fallback})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func currentUser(c *fiber.Ctx) (uuid.UUID, bool) {
	userID, ok := c.Locals("userID").(uuid.UUID)
	return userID, ok
}
