package models

import "errors"

// User-correctable errors. Handlers surface their text verbatim.
var (
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares to sell")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInvalidAction      = errors.New("action must be BUY or SELL")
	ErrUserNotFound       = errors.New("user not found")
)

// Infrastructure errors. Logged, never shown to clients in detail.
var (
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")
	ErrPersistence         = errors.New("persistence failure")
)
