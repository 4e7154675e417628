// Package pipeline runs a price comparison end to end: every source is
// searched concurrently, the pooled listings are matched against the query
// and the matches are priced and summarized.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/haggle/internal/analyzer"
	"github.com/FranksOps/haggle/internal/listing"
	"github.com/FranksOps/haggle/internal/metrics"
	"github.com/FranksOps/haggle/internal/report"
	"github.com/FranksOps/haggle/internal/source"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyTitle is returned when the product title is blank.
var ErrEmptyTitle = errors.New("pipeline: product title is empty")

// Pipeline wires sources, matcher and summarizer together. A nil Matcher or
// Summarizer uses the defaults. Pipeline is safe for concurrent use as long
// as its sources are.
type Pipeline struct {
	Sources    []source.Source
	Matcher    *analyzer.Matcher
	Summarizer *report.Summarizer
	Logger     *slog.Logger
}

// Compare searches every source for title and returns the matching listings,
// best match first, with statistics over their prices. Source failures
// degrade the result instead of failing it.
func (p *Pipeline) Compare(ctx context.Context, title string) (*listing.SearchResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	matcher := p.Matcher
	if matcher == nil {
		matcher = analyzer.NewMatcher(analyzer.Config{})
	}
	summarizer := p.Summarizer
	if summarizer == nil {
		summarizer = report.NewSummarizer(0, 0)
	}

	start := time.Now()
	outcomes := p.gather(ctx, title)

	var pool []listing.Listing
	statuses := make([]listing.SourceStatus, 0, len(outcomes))
	for _, out := range outcomes {
		status := listing.SourceStatus{
			Source:   out.Source,
			Count:    len(out.Listings),
			Duration: out.Duration,
		}
		reason := ""
		if out.Failure != nil {
			reason = string(out.Failure.Reason)
			status.Failure = out.Failure.Error()
			logger.Warn("source degraded", "source", out.Source, "reason", reason, "err", out.Failure.Err)
		}
		metrics.RecordSource(out.Source, len(out.Listings), reason)
		statuses = append(statuses, status)
		pool = append(pool, out.Listings...)
	}

	matched := matcher.Filter(title, pool)
	priced, stats := summarizer.Summarize(matched)

	elapsed := time.Since(start)
	metrics.RecordCompare(elapsed, len(matched))
	logger.Info("compare finished",
		"query", title,
		"pooled", len(pool),
		"matched", len(matched),
		"priced", stats.Count,
		"duration", elapsed,
	)

	return &listing.SearchResult{
		Query:    title,
		Results:  priced,
		Insights: stats,
		Sources:  statuses,
	}, nil
}

// gather runs every source concurrently and returns their outcomes in
// source order. Sources report failures in their Outcome, so no goroutine
// fails the group and one slow source never cancels the others.
func (p *Pipeline) gather(ctx context.Context, title string) []source.Outcome {
	outcomes := make([]source.Outcome, len(p.Sources))

	var g errgroup.Group
	for i, src := range p.Sources {
		g.Go(func() error {
			out := src.Search(ctx, title)
			if out.Source == "" {
				out.Source = src.Name()
			}
			if out.Failure != nil || out.Listings == nil {
				out.Listings = []listing.Listing{}
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
