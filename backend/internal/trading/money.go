package trading

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const displayCurrency = money.USD

// formatUSD renders an amount like "$1,234.50".
func formatUSD(amount decimal.Decimal) string {
	cur := money.GetCurrency(displayCurrency)
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, displayCurrency).Display()
}
