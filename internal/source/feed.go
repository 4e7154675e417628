package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/haggle/internal/listing"
	"github.com/FranksOps/haggle/internal/scraper"
)

// Feed defaults, matching the Daraz catalog AJAX endpoint.
const (
	DefaultFeedName     = "Daraz"
	DefaultFeedEndpoint = "https://www.daraz.pk/catalog/"
	DefaultItemsPath    = "mods.listItems"
)

var (
	defaultTitleKeys    = []string{"name"}
	defaultPriceKeys    = []string{"price"}
	defaultLocationKeys = []string{"location"}
	defaultLinkKeys     = []string{"itemUrl", "pUrl", "productUrl"}
)

// FeedConfig configures a Feed. Zero values fall back to the defaults above.
type FeedConfig struct {
	Name     string
	Endpoint string
	// ItemsPath is the dot-separated path to the array of entries.
	ItemsPath        string
	MaxItems         int
	FallbackLocation string

	// Field chains are tried in order; the first non-empty value wins.
	TitleKeys    []string
	PriceKeys    []string
	LocationKeys []string
	LinkKeys     []string
}

// Feed searches a marketplace that answers with a structured JSON payload.
type Feed struct {
	cfg      FeedConfig
	endpoint *url.URL
	fetcher  Fetcher
	logger   *slog.Logger
}

var _ Source = (*Feed)(nil)

// NewFeed builds a Feed.
func NewFeed(cfg FeedConfig, fetcher Fetcher, logger *slog.Logger) (*Feed, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("source: feed %q: nil fetcher", cfg.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultFeedName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultFeedEndpoint
	}
	if cfg.ItemsPath == "" {
		cfg.ItemsPath = DefaultItemsPath
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.FallbackLocation == "" {
		cfg.FallbackLocation = DefaultFallbackLocation
	}
	if len(cfg.TitleKeys) == 0 {
		cfg.TitleKeys = defaultTitleKeys
	}
	if len(cfg.PriceKeys) == 0 {
		cfg.PriceKeys = defaultPriceKeys
	}
	if len(cfg.LocationKeys) == 0 {
		cfg.LocationKeys = defaultLocationKeys
	}
	if len(cfg.LinkKeys) == 0 {
		cfg.LinkKeys = defaultLinkKeys
	}

	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("source: feed %q endpoint: %w", cfg.Name, err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("source: feed %q endpoint %q is not absolute", cfg.Name, cfg.Endpoint)
	}

	return &Feed{cfg: cfg, endpoint: endpoint, fetcher: fetcher, logger: logger}, nil
}

func (f *Feed) Name() string { return f.cfg.Name }

// SearchURL is the URL requested for query.
func (f *Feed) SearchURL(query string) string {
	u := *f.endpoint
	q := u.Query()
	q.Set("q", query)
	q.Set("ajax", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

func (f *Feed) Search(ctx context.Context, query string) Outcome {
	start := time.Now()
	out := f.search(ctx, query)
	out.Duration = time.Since(start)
	return out
}

func (f *Feed) search(ctx context.Context, query string) Outcome {
	header := http.Header{}
	header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	header.Set("X-Requested-With", "XMLHttpRequest")

	target := f.SearchURL(query)
	resp, err := f.fetcher.Fetch(ctx, scraper.Request{Source: f.cfg.Name, URL: target, Header: header})
	if failure := classify(ctx, resp, err); failure != nil {
		return Outcome{Source: f.cfg.Name, Listings: []listing.Listing{}, Failure: failure}
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return failed(f.cfg.Name, ReasonShape, fmt.Errorf("decode %s: %w", target, err))
	}

	raw, err := lookupPath(doc, f.cfg.ItemsPath)
	if err != nil {
		return failed(f.cfg.Name, ReasonShape, err)
	}
	if raw == nil {
		return Outcome{Source: f.cfg.Name, Listings: []listing.Listing{}}
	}
	items, ok := raw.([]any)
	if !ok {
		return failed(f.cfg.Name, ReasonShape, fmt.Errorf("%q is %T, not an array", f.cfg.ItemsPath, raw))
	}

	listings := make([]listing.Listing, 0, min(len(items), f.cfg.MaxItems))
	for i, it := range items {
		if i >= f.cfg.MaxItems {
			break
		}
		entry, ok := it.(map[string]any)
		if !ok {
			f.logger.Debug("skipping non-object entry", "source", f.cfg.Name, "index", i)
			continue
		}
		l, ok := f.toListing(entry)
		if !ok {
			f.logger.Debug("skipping entry without title or price", "source", f.cfg.Name, "index", i)
			continue
		}
		listings = append(listings, l)
	}
	return Outcome{Source: f.cfg.Name, Listings: listings}
}

func (f *Feed) toListing(entry map[string]any) (listing.Listing, bool) {
	title := firstText(entry, f.cfg.TitleKeys)
	price := firstText(entry, f.cfg.PriceKeys)
	if title == "" || price == "" {
		return listing.Listing{}, false
	}

	location := firstText(entry, f.cfg.LocationKeys)
	if location == "" {
		location = f.cfg.FallbackLocation
	}

	return listing.Listing{
		Source:   f.cfg.Name,
		Title:    title,
		Price:    price,
		Location: location,
		Link:     resolve(f.endpoint, firstText(entry, f.cfg.LinkKeys)),
	}, true
}

// resolve makes ref absolute against base. Unparseable references are kept
// as given.
func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
