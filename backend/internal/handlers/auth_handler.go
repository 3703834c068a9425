package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CredentialsRequest defines the expected JSON body for register and login
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// parseCredentials returns the request or a message explaining why it is
// unusable.
func parseCredentials(c *fiber.Ctx) (*CredentialsRequest, string) {
	req := new(CredentialsRequest)
	if err := c.BodyParser(req); err != nil {
		return nil, "Cannot parse request body"
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, "Username and password cannot be empty"
	}
	return req, ""
}

// Register handles user registration.
func (h *Handler) Register(c *fiber.Ctx) error {
	req, msg := parseCredentials(c)
	if req == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	session, err := h.auth.Register(c.Context(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, err, "Failed to create user")
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// Login handles user authentication.
func (h *Handler) Login(c *fiber.Ctx) error {
	req, msg := parseCredentials(c)
	if req == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	session, err := h.auth.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, err, "Failed to log in")
	}
	return c.Status(fiber.StatusOK).JSON(session)
}
