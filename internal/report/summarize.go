// Package report turns ranked matches into priced results with price
// statistics, and renders comparisons for people and machines.
package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/FranksOps/haggle/internal/listing"
)

const (
	// DefaultSuggestedMinRatio scales the average into the low end of the
	// suggested price band.
	DefaultSuggestedMinRatio = 0.9
	// DefaultSuggestedMaxRatio scales the average into the high end.
	DefaultSuggestedMaxRatio = 1.05
)

var pricePattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParsePrice extracts the first number in raw, ignoring thousands
// separators. "Rs. 12,500" yields 12500.
func ParsePrice(raw string) (float64, bool) {
	m := pricePattern.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Summarizer prices matched listings and computes statistics over them.
type Summarizer struct {
	SuggestedMinRatio float64
	SuggestedMaxRatio float64
}

// NewSummarizer returns a Summarizer; non-positive ratios take the defaults.
func NewSummarizer(minRatio, maxRatio float64) *Summarizer {
	if minRatio <= 0 {
		minRatio = DefaultSuggestedMinRatio
	}
	if maxRatio <= 0 {
		maxRatio = DefaultSuggestedMaxRatio
	}
	return &Summarizer{SuggestedMinRatio: minRatio, SuggestedMaxRatio: maxRatio}
}

// Summarize annotates each listing with its parsed price, keeping order, and
// computes statistics over the listings whose price parsed. With no parsable
// prices the statistics are all zero.
func (s *Summarizer) Summarize(matched []listing.Scored) ([]listing.Priced, listing.Statistics) {
	priced := make([]listing.Priced, 0, len(matched))
	var (
		stats listing.Statistics
		sum   float64
	)

	for _, m := range matched {
		p := listing.Priced{Scored: m}
		if v, ok := ParsePrice(m.Price); ok {
			p.CleanPrice = &v
			if stats.Count == 0 || v < stats.Min {
				stats.Min = v
			}
			if stats.Count == 0 || v > stats.Max {
				stats.Max = v
			}
			sum += v
			stats.Count++
		}
		priced = append(priced, p)
	}

	if stats.Count == 0 {
		return priced, listing.Statistics{}
	}

	avg := sum / float64(stats.Count)
	stats.Min = round2(stats.Min)
	stats.Max = round2(stats.Max)
	stats.Average = round2(avg)
	stats.SuggestedMin = round2(avg * s.minRatio())
	stats.SuggestedMax = round2(avg * s.maxRatio())
	return priced, stats
}

func (s *Summarizer) minRatio() float64 {
	if s == nil || s.SuggestedMinRatio <= 0 {
		return DefaultSuggestedMinRatio
	}
	return s.SuggestedMinRatio
}

func (s *Summarizer) maxRatio() float64 {
	if s == nil || s.SuggestedMaxRatio <= 0 {
		return DefaultSuggestedMaxRatio
	}
	return s.SuggestedMaxRatio
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
