// Package sentiment blends news polarity, analyst recommendations and the
// volatility index into one bounded score per symbol.
package sentiment

import (
	"encoding/json"
	"math"
	"time"
)

// Status says why a signal holds the value it does.
type Status int

const (
	// NoData: the source answered but had nothing to score.
	NoData Status = iota
	// Available: the score was computed from real data.
	Available
	// Failed: the source errored or timed out.
	Failed
)

func (s Status) String() string {
	switch s {
	case Available:
		return "available"
	case Failed:
		return "failed"
	default:
		return "no_data"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Signal is one source's opinion in [-1, 1]. Anything but Available
// carries Score 0 and Confidence 0.
type Signal struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Status     Status  `json:"status"`
}

func neutral(status Status) Signal {
	return Signal{Status: status}
}

// AnalystCounts is one recommendation-trend snapshot.
type AnalystCounts struct {
	Period     string `json:"period"`
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
}

// Total is the number of recommendations in the snapshot.
func (a AnalystCounts) Total() int {
	return a.StrongBuy + a.Buy + a.Hold + a.Sell + a.StrongSell
}

// FearReading is the volatility-index signal. Level is the latest index
// value and Change its percent move against the previous close.
type FearReading struct {
	Signal
	Level  float64 `json:"level"`
	Change float64 `json:"change"`
}

// Reading is the composite result for one symbol.
type Reading struct {
	Symbol        string         `json:"symbol"`
	Composite     float64        `json:"composite"`
	Label         string         `json:"label"`
	News          Signal         `json:"news"`
	Analyst       Signal         `json:"analyst"`
	Fear          FearReading    `json:"fear"`
	AnalystCounts *AnalystCounts `json:"analyst_data"`
	ComputedAt    time.Time      `json:"computed_at"`
}

// Blend weights. All three terms are always present; an unavailable
// source contributes 0.
const (
	NewsWeight    = 0.3
	AnalystWeight = 0.4
	FearWeight    = 0.3
)

// Blend combines the three component scores.
func Blend(news, analyst, fear float64) float64 {
	return clamp(news*NewsWeight+analyst*AnalystWeight+fear*FearWeight, -1, 1)
}

// Label buckets a score for display.
func Label(score float64) string {
	switch {
	case score >= 0.6:
		return "strong bullish"
	case score >= 0.2:
		return "bullish"
	case score >= -0.2:
		return "neutral"
	case score >= -0.6:
		return "bearish"
	default:
		return "strong bearish"
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
