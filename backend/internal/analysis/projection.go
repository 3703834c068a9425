package analysis

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/user/stocksim/backend/internal/models"
)

// Projection defaults.
const (
	DefaultProjectionDays = 30
	MaxProjectionDays     = 365
	minProjectionBars     = 3
	band95                = 1.96
)

// ErrNotEnoughHistory is returned when fewer than three closes are available.
var ErrNotEnoughHistory = errors.New("not enough price history to project")

// ProjectedPoint is one future day of a projection with its 95% prediction
// interval.
type ProjectedPoint struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
}

// Projection is a least-squares trend fitted to daily closes.
type Projection struct {
	Symbol         string           `json:"symbol"`
	CurrentPrice   decimal.Decimal  `json:"current_price"`
	PredictedPrice decimal.Decimal  `json:"predicted_price"`
	ChangePercent  float64          `json:"change_percent"`
	Slope          float64          `json:"slope"`
	Points         []ProjectedPoint `json:"points"`
}

// Project fits close = intercept + slope*i over the bars and extends it
// days past the last bar. The band is 1.96 standard errors of prediction.
func Project(symbol string, bars []models.Bar, days int) (*Projection, error) {
	n := len(bars)
	if n < minProjectionBars {
		return nil, ErrNotEnoughHistory
	}
	if days <= 0 {
		days = DefaultProjectionDays
	}
	days = min(days, MaxProjectionDays)

	y := make([]float64, n)
	var meanX, meanY float64
	for i, b := range bars {
		y[i] = b.Close.InexactFloat64()
		meanX += float64(i)
		meanY += y[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var sxx, sxy float64
	for i := range y {
		dx := float64(i) - meanX
		sxx += dx * dx
		sxy += dx * (y[i] - meanY)
	}
	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var sse float64
	for i := range y {
		r := y[i] - (intercept + slope*float64(i))
		sse += r * r
	}
	mse := sse / float64(n-2)

	last := bars[n-1].Timestamp
	points := make([]ProjectedPoint, 0, days)
	for k := 1; k <= days; k++ {
		x := float64(n - 1 + k)
		fit := intercept + slope*x
		se := math.Sqrt(mse * (1 + 1/float64(n) + (x-meanX)*(x-meanX)/sxx))
		margin := band95 * se
		points = append(points, ProjectedPoint{
			Date:  last.AddDate(0, 0, k),
			Price: round2(fit),
			Lower: round2(fit - margin),
			Upper: round2(fit + margin),
		})
	}

	current := bars[n-1].Close
	predicted := points[len(points)-1].Price
	var change float64
	if current.IsPositive() {
		change = predicted.Sub(current).Div(current).Shift(2).Round(2).InexactFloat64()
	}
	return &Projection{
		Symbol:         symbol,
		CurrentPrice:   current,
		PredictedPrice: predicted,
		ChangePercent:  change,
		Slope:          slope,
		Points:         points,
	}, nil
}

func round2(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}
