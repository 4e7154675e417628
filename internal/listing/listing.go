// Package listing holds the records that flow through a price comparison:
// raw listings from a source, scored matches, priced results and the
// statistics computed over them.
package listing

import "time"

// Listing is a single product offer as normalized by a source adapter.
// Adapters produce it once; later stages wrap it rather than modify it.
type Listing struct {
	Source   string `json:"source" yaml:"source"`
	Title    string `json:"title" yaml:"title"`
	Price    string `json:"price" yaml:"price"` // raw text, e.g. "Rs. 12,500"
	Location string `json:"location" yaml:"location"`
	Link     string `json:"link" yaml:"link"`
}

// Scored is a Listing accepted by the matcher together with its match score.
type Scored struct {
	Listing    `yaml:",inline"`
	MatchScore float64 `json:"match_score" yaml:"match_score"`
}

// Priced is a Scored listing annotated with its numeric price. CleanPrice is
// nil when the raw price text could not be parsed.
type Priced struct {
	Scored     `yaml:",inline"`
	CleanPrice *float64 `json:"clean_price,omitempty" yaml:"clean_price,omitempty"`
}

// Statistics summarizes the numeric prices of a ranked result set.
type Statistics struct {
	Min          float64 `json:"min" yaml:"min"`
	Max          float64 `json:"max" yaml:"max"`
	Average      float64 `json:"average" yaml:"average"`
	Count        int     `json:"count" yaml:"count"`
	SuggestedMin float64 `json:"suggested_min" yaml:"suggested_min"`
	SuggestedMax float64 `json:"suggested_max" yaml:"suggested_max"`
}

// SourceStatus reports how one source behaved during a comparison.
type SourceStatus struct {
	Source   string        `json:"source" yaml:"source"`
	Count    int           `json:"count" yaml:"count"`
	Failure  string        `json:"failure,omitempty" yaml:"failure,omitempty"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

// SearchResult is the output of one comparison: ranked listings (best match
// first) and the statistics over their prices.
type SearchResult struct {
	Query    string         `json:"query" yaml:"query"`
	Results  []Priced       `json:"results" yaml:"results"`
	Insights Statistics     `json:"insights" yaml:"insights"`
	Sources  []SourceStatus `json:"sources" yaml:"sources"`
}
