// Package source adapts marketplaces into normalized listings. Every adapter
// turns one search query into at most one outbound request and reports
// failures as data rather than errors.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/haggle/internal/listing"
	"github.com/FranksOps/haggle/internal/scraper"
)

// DefaultMaxItems caps how many entries an adapter keeps from one response.
const DefaultMaxItems = 10

// DefaultFallbackLocation is used when a listing carries no location.
const DefaultFallbackLocation = "unknown region"

// Reason classifies why a source produced no listings.
type Reason string

const (
	ReasonTimeout   Reason = "timeout"
	ReasonTransport Reason = "transport"
	ReasonStatus    Reason = "status"
	ReasonBlocked   Reason = "blocked"
	ReasonShape     Reason = "shape"
	ReasonCanceled  Reason = "canceled"
)

// Failure describes a degraded search.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Outcome is the result of one Search. Failure is nil on success; on failure
// Listings is empty.
type Outcome struct {
	Source   string
	Listings []listing.Listing
	Failure  *Failure
	Duration time.Duration
}

// Source searches one marketplace.
type Source interface {
	Name() string
	// Search never returns an error; problems are reported in
	// Outcome.Failure.
	Search(ctx context.Context, query string) Outcome
}

// Fetcher is the part of scraper.Fetcher sources depend on.
type Fetcher interface {
	Fetch(ctx context.Context, req scraper.Request) (*scraper.Response, error)
}

var _ Fetcher = (*scraper.Fetcher)(nil)

func failed(name string, reason Reason, err error) Outcome {
	return Outcome{
		Source:   name,
		Listings: []listing.Listing{},
		Failure:  &Failure{Reason: reason, Err: err},
	}
}

// classify maps a fetch result to a Failure, or nil when resp carries
// usable content.
func classify(ctx context.Context, resp *scraper.Response, err error) *Failure {
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
			return &Failure{Reason: ReasonCanceled, Err: err}
		case scraper.IsTimeout(err):
			return &Failure{Reason: ReasonTimeout, Err: err}
		default:
			return &Failure{Reason: ReasonTransport, Err: err}
		}
	}
	if resp.BlockedBy != "" {
		return &Failure{Reason: ReasonBlocked, Err: fmt.Errorf("challenge served by %s (status %d)", resp.BlockedBy, resp.StatusCode)}
	}
	if !resp.OK() {
		return &Failure{Reason: ReasonStatus, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}
