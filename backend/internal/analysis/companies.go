// Package analysis holds read-only market tools built on the gateway:
// company search, price projection and a large-cap overview.
package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/user/stocksim/backend/internal/models"
)

// Company is one searchable listing.
type Company struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// DefaultCompanies is the searchable universe: the largest S&P 100 names.
var DefaultCompanies = []Company{
	{"AAPL", "Apple Inc."},
	{"MSFT", "Microsoft Corporation"},
	{"AMZN", "Amazon.com, Inc."},
	{"GOOGL", "Alphabet Inc."},
	{"META", "Meta Platforms, Inc."},
	{"NVDA", "NVIDIA Corporation"},
	{"BRK-B", "Berkshire Hathaway Inc."},
	{"JPM", "JPMorgan Chase & Co."},
	{"JNJ", "Johnson & Johnson"},
	{"V", "Visa Inc."},
	{"PG", "The Procter & Gamble Company"},
	{"XOM", "Exxon Mobil Corporation"},
	{"MA", "Mastercard Incorporated"},
	{"HD", "The Home Depot, Inc."},
	{"CVX", "Chevron Corporation"},
	{"BAC", "Bank of America Corporation"},
	{"KO", "The Coca-Cola Company"},
	{"PFE", "Pfizer Inc."},
	{"ABBV", "AbbVie Inc."},
	{"WMT", "Walmart Inc."},
	{"AVGO", "Broadcom Inc."},
	{"PEP", "PepsiCo, Inc."},
	{"LLY", "Eli Lilly and Company"},
	{"MRK", "Merck & Co., Inc."},
	{"TMO", "Thermo Fisher Scientific Inc."},
	{"UNH", "UnitedHealth Group Incorporated"},
}

// Match thresholds on the 0-100 similarity scale.
const (
	MatchThreshold  = 80
	SearchThreshold = 60
)

var corporateSuffix = regexp.MustCompile(`(?i)[,\s]+(inc\.?|corp\.?|ltd\.?|group|corporation|limited|incorporated|company|& co\.?)$`)

// CompanyMatch is a search hit with its similarity score.
type CompanyMatch struct {
	Company
	Score int `json:"score"`
}

type listing struct {
	Company
	keywords []string // lowercase
}

// Matcher resolves free text to ticker symbols.
type Matcher struct {
	listings []listing
	bySymbol map[string]int
	byKey    map[string]int
}

// NewMatcher indexes companies by symbol and by their names: full, without
// a corporate suffix, and the first word alone.
func NewMatcher(companies []Company) *Matcher {
	m := &Matcher{
		bySymbol: make(map[string]int, len(companies)),
		byKey:    make(map[string]int, len(companies)*4),
	}
	for _, c := range companies {
		c.Symbol = models.NormalizeSymbol(c.Symbol)
		idx := len(m.listings)
		l := listing{Company: c, keywords: keywords(c)}
		m.listings = append(m.listings, l)
		m.bySymbol[c.Symbol] = idx
		for _, k := range l.keywords {
			if _, taken := m.byKey[k]; !taken {
				m.byKey[k] = idx
			}
		}
	}
	return m
}

func keywords(c Company) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(c.Symbol)
	add(c.Name)
	name := strings.TrimPrefix(c.Name, "The ")
	add(name)
	stripped := name
	for {
		next := corporateSuffix.ReplaceAllString(stripped, "")
		if next == stripped {
			break
		}
		stripped = next
	}
	add(stripped)
	if fields := strings.Fields(name); len(fields) > 0 {
		add(strings.Trim(fields[0], ",."))
	}
	return out
}

// Match returns the best listing for query, or nil when nothing scores at
// least MatchThreshold. Exact symbols and keywords win outright.
func (m *Matcher) Match(query string) *CompanyMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if idx, ok := m.bySymbol[strings.ToUpper(query)]; ok {
		return &CompanyMatch{Company: m.listings[idx].Company, Score: 100}
	}
	if idx, ok := m.byKey[strings.ToLower(query)]; ok {
		return &CompanyMatch{Company: m.listings[idx].Company, Score: 100}
	}

	var best *CompanyMatch
	for _, l := range m.listings {
		if score := l.score(query); best == nil || score > best.Score {
			best = &CompanyMatch{Company: l.Company, Score: score}
		}
	}
	if best == nil || best.Score < MatchThreshold {
		return nil
	}
	return best
}

// Search returns up to limit listings scoring at least SearchThreshold,
// best first.
func (m *Matcher) Search(query string, limit int) []CompanyMatch {
	query = strings.TrimSpace(query)
	out := make([]CompanyMatch, 0)
	if query == "" || limit <= 0 {
		return out
	}
	for _, l := range m.listings {
		if score := l.score(query); score >= SearchThreshold {
			out = append(out, CompanyMatch{Company: l.Company, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// score is the best of symbol similarity and partial similarity against
// the name and each keyword.
func (l listing) score(query string) int {
	lower := strings.ToLower(query)
	best := ratio(strings.ToUpper(query), l.Symbol)
	for _, k := range l.keywords {
		best = max(best, partialRatio(lower, k))
	}
	return best
}

// ratio is 100 * (1 - edit distance / longer length), rounded.
func ratio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(float64(longest-d)*100/float64(longest) + 0.5)
}

// partialRatio is the best ratio of the shorter string against every
// same-length window of the longer one.
func partialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	s := string(short)
	best := 0
	for i := 0; i+len(short) <= len(long); i++ {
		best = max(best, ratio(s, string(long[i:i+len(short)])))
		if best == 100 {
			break
		}
	}
	return best
}
