package models

import (
	"fmt"
	"strings"
)

const maxSymbolLen = 10

// NormalizeSymbol trims and uppercases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateSymbol accepts uppercase tickers such as "AAPL", "BRK.B" or "^VIX".
func ValidateSymbol(s string) error {
	if s == "" || len(s) > maxSymbolLen {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '^':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
		}
	}
	return nil
}
