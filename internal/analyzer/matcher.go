package analyzer

import (
	"slices"
	"strings"

	"github.com/FranksOps/haggle/internal/listing"
)

const (
	// DefaultThreshold is the minimum title similarity for a listing to be
	// accepted on the fuzzy path.
	DefaultThreshold = 0.4
	// DefaultMinOverlap is the share of query tokens a listing title must
	// contain, exclusive, to be accepted on the token path.
	DefaultMinOverlap = 0.5
)

// Matcher decides which listings refer to the queried product. It holds only
// configuration and is safe for concurrent use.
type Matcher struct {
	Threshold  float64
	MinOverlap float64
	stopwords  map[string]struct{}
}

// Config configures a Matcher. A nil Threshold or MinOverlap falls back to
// the default; explicit values, zero included, are clamped to [0, 1].
type Config struct {
	Threshold  *float64
	MinOverlap *float64
	// Stopwords are dropped from both the query and listing tokens.
	Stopwords []string
}

// NewMatcher builds a Matcher from cfg.
func NewMatcher(cfg Config) *Matcher {
	m := &Matcher{
		Threshold:  ratio(cfg.Threshold, DefaultThreshold),
		MinOverlap: ratio(cfg.MinOverlap, DefaultMinOverlap),
	}
	if len(cfg.Stopwords) > 0 {
		m.stopwords = make(map[string]struct{}, len(cfg.Stopwords))
		for _, w := range cfg.Stopwords {
			m.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
	return m
}

// Filter scores every listing in pool against query and returns the accepted
// ones ordered by score, best first. Listings with equal scores keep their
// input order. Listings without a title are dropped.
func (m *Matcher) Filter(query string, pool []listing.Listing) []listing.Scored {
	if len(pool) == 0 {
		return []listing.Scored{}
	}

	lowerQuery := strings.ToLower(query)
	queryTokens := m.tokenize(lowerQuery)

	matched := make([]listing.Scored, 0, len(pool))
	for _, l := range pool {
		if strings.TrimSpace(l.Title) == "" {
			continue
		}
		lowerTitle := strings.ToLower(l.Title)

		overlap := overlapRatio(queryTokens, m.tokenize(lowerTitle))
		similarity := Similarity(lowerQuery, lowerTitle)

		if similarity >= m.Threshold || overlap > m.MinOverlap {
			matched = append(matched, listing.Scored{
				Listing:    l,
				MatchScore: max(similarity, overlap),
			})
		}
	}

	slices.SortStableFunc(matched, func(a, b listing.Scored) int {
		switch {
		case a.MatchScore > b.MatchScore:
			return -1
		case a.MatchScore < b.MatchScore:
			return 1
		}
		return 0
	})
	return matched
}

func ratio(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return min(max(*v, 0), 1)
}

// tokenize splits lowered text on whitespace into a set, minus stopwords.
func (m *Matcher) tokenize(lowered string) map[string]struct{} {
	fields := strings.Fields(lowered)
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, stop := m.stopwords[f]; stop {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

// overlapRatio is the fraction of query tokens present in the title tokens.
func overlapRatio(query, title map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	common := 0
	for tok := range query {
		if _, ok := title[tok]; ok {
			common++
		}
	}
	return float64(common) / float64(len(query))
}

// Similarity returns 2*LCS(a, b) / (len(a) + len(b)) computed over runes,
// where LCS is the longest common subsequence. The result is 1.0 only for
// identical strings and 0.0 only when they share no character. Two empty
// strings are considered identical.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2 * float64(lcsLength(ra, rb)) / float64(total)
}

// lcsLength computes the longest common subsequence length with two rows of
// the usual dynamic programming table.
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
