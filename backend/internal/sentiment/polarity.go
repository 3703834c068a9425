package sentiment

import (
	"math"
	"strings"
	"unicode"
)

// PolarityScorer maps text to a polarity in [-1, 1].
type PolarityScorer interface {
	Polarity(text string) float64
}

// LexiconScorer is a rule-based scorer over a valence lexicon. Word
// valences run from -4 to +4; negators within three tokens flip and damp a
// word, intensifiers push it away from zero, and the sum is squashed into
// [-1, 1] with x / sqrt(x^2 + alpha).
type LexiconScorer struct {
	lexicon      map[string]float64
	negators     map[string]bool
	intensifiers map[string]float64
	alpha        float64
}

const (
	negationScale  = -0.74
	negationWindow = 3
)

// NewLexiconScorer returns a scorer loaded with the built-in financial
// news lexicon.
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{
		lexicon:      financeLexicon,
		negators:     negatorWords,
		intensifiers: intensifierWords,
		alpha:        15,
	}
}

// Polarity scores text. Text with no lexicon hits scores 0.
func (s *LexiconScorer) Polarity(text string) float64 {
	tokens := tokenize(text)
	sum := 0.0
	for i, tok := range tokens {
		valence, ok := s.lexicon[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if boost, ok := s.intensifiers[tokens[i-1]]; ok {
				if valence > 0 {
					valence += boost
				} else {
					valence -= boost
				}
			}
		}
		for j := i - 1; j >= 0 && j >= i-negationWindow; j-- {
			if s.negators[tokens[j]] {
				valence *= negationScale
				break
			}
		}
		sum += valence
	}
	if sum == 0 {
		return 0
	}
	return clamp(sum/math.Sqrt(sum*sum+s.alpha), -1, 1)
}

func tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "n't", " not")
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
}

var negatorWords = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nor": true,
	"neither": true, "without": true, "hardly": true, "barely": true,
	"cannot": true, "nothing": true,
}

var intensifierWords = map[string]float64{
	"very": 0.293, "extremely": 0.293, "highly": 0.293, "sharply": 0.293,
	"significantly": 0.293, "substantially": 0.293, "strongly": 0.293,
	"hugely": 0.293, "deeply": 0.293, "most": 0.293, "really": 0.293,
	"slightly": -0.293, "somewhat": -0.293, "marginally": -0.293,
	"modestly": -0.293,
}

var financeLexicon = map[string]float64{
	// positive
	"gain": 1.8, "gains": 1.8, "gained": 1.8, "rise": 1.4, "rises": 1.4,
	"rising": 1.4, "rose": 1.4, "rally": 2.0, "rallies": 2.0, "rallied": 2.0,
	"surge": 2.2, "surges": 2.2, "surged": 2.2, "soar": 2.4, "soars": 2.4,
	"soared": 2.4, "jump": 1.6, "jumps": 1.6, "jumped": 1.6, "climb": 1.4,
	"climbs": 1.4, "climbed": 1.4, "beat": 1.8, "beats": 1.8, "exceed": 1.8,
	"exceeded": 1.8, "exceeds": 1.8, "outperform": 2.0, "outperformed": 2.0,
	"upgrade": 2.0, "upgraded": 2.0, "bullish": 2.4, "profit": 1.8,
	"profits": 1.8, "profitable": 2.0, "growth": 1.6, "grow": 1.4,
	"grew": 1.4, "growing": 1.4, "strong": 1.8, "stronger": 1.8,
	"strongest": 2.2, "record": 1.4, "optimistic": 2.2, "optimism": 2.0,
	"positive": 1.8, "success": 2.2, "successful": 2.2, "win": 2.0,
	"wins": 2.0, "winning": 2.0, "boost": 1.8, "boosted": 1.8, "boosts": 1.8,
	"improve": 1.8, "improved": 1.8, "improves": 1.8, "improvement": 1.8,
	"recover": 1.6, "recovered": 1.6, "recovery": 1.6, "rebound": 1.6,
	"rebounded": 1.6, "robust": 1.8, "solid": 1.4, "upbeat": 2.0,
	"confident": 1.8, "confidence": 1.4, "innovative": 1.6, "innovation": 1.4,
	"expand": 1.2, "expansion": 1.2, "dividend": 0.8, "buyback": 1.2,
	"breakthrough": 2.4, "good": 1.9, "great": 3.1, "excellent": 3.2,
	"best": 3.2, "better": 1.9, "impressive": 2.4, "favorable": 2.0,
	"opportunity": 1.6, "opportunities": 1.6, "momentum": 1.2, "upside": 1.8,
	"high": 0.6, "higher": 1.0, "highs": 1.2, "outpace": 1.6, "approval": 1.8,
	"approved": 1.8, "partnership": 1.2, "accelerate": 1.4, "accelerating": 1.4,

	// negative
	"loss": -1.8, "losses": -1.8, "lose": -1.8, "lost": -1.6, "fall": -1.4,
	"falls": -1.4, "falling": -1.4, "fell": -1.4, "drop": -1.6, "drops": -1.6,
	"dropped": -1.6, "decline": -1.6, "declines": -1.6, "declined": -1.6,
	"plunge": -2.6, "plunges": -2.6, "plunged": -2.6, "slump": -2.2,
	"slumped": -2.2, "tumble": -2.2, "tumbled": -2.2, "crash": -3.0,
	"crashed": -3.0, "sink": -1.8, "sank": -1.8, "miss": -1.8, "missed": -1.8,
	"misses": -1.8, "underperform": -2.0, "underperformed": -2.0,
	"downgrade": -2.0, "downgraded": -2.0, "bearish": -2.4, "weak": -1.8,
	"weaker": -1.8, "weakness": -1.8, "risk": -1.1, "risks": -1.1,
	"risky": -1.4, "concern": -1.4, "concerns": -1.4, "worried": -1.8,
	"worry": -1.8, "worries": -1.8, "fear": -2.2, "fears": -2.2,
	"uncertainty": -1.6, "uncertain": -1.4, "volatile": -1.2,
	"volatility": -1.0, "lawsuit": -2.0, "lawsuits": -2.0, "fraud": -3.2,
	"investigation": -1.8, "subpoena": -1.6, "fine": -0.8, "fined": -1.8,
	"penalty": -1.8, "recall": -1.8, "layoffs": -2.0, "layoff": -2.0,
	"cut": -1.2, "cuts": -1.2, "bankruptcy": -3.4, "bankrupt": -3.4,
	"default": -2.4, "debt": -0.8, "negative": -1.8, "pessimistic": -2.2,
	"disappointing": -2.2, "disappointed": -2.2, "disappoint": -2.0,
	"bad": -2.5, "worse": -2.1, "worst": -3.1, "poor": -2.1, "fail": -2.4,
	"failed": -2.4, "failure": -2.6, "slowdown": -1.8, "recession": -2.6,
	"inflation": -1.0, "downturn": -2.0, "selloff": -2.2, "sell-off": -2.2,
	"warning": -1.6, "warns": -1.6, "warned": -1.6, "downside": -1.8,
	"lower": -1.0, "lows": -1.2, "struggle": -1.8, "struggles": -1.8,
	"struggling": -1.8, "halt": -1.4, "halted": -1.4, "delay": -1.2,
	"delayed": -1.2, "shortage": -1.6, "scandal": -2.8, "breach": -2.2,
}
