package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/haggle/internal/listing"
	"github.com/FranksOps/haggle/internal/scraper"
	"github.com/PuerkitoBio/goquery"
)

// Markup defaults, matching the OLX search results page.
const (
	DefaultMarkupName    = "OLX"
	DefaultMarkupBaseURL = "https://www.olx.com.pk"
)

// Selectors lists CSS selector chains for each part of a listing. Within a
// chain the first selector that matches wins.
type Selectors struct {
	Node     []string
	Title    []string
	Price    []string
	Location []string
	Link     []string
}

// DefaultSelectors returns the selector chains for the OLX results page.
func DefaultSelectors() Selectors {
	return Selectors{
		Node:     []string{`li[aria-label="Listing"]`, `li article`},
		Title:    []string{`h2`, `div[aria-label="Title"]`},
		Price:    []string{`span[aria-label="Price"]`, `div[aria-label="Price"]`},
		Location: []string{`span[aria-label="Location"]`},
		Link:     []string{`a[href]`},
	}
}

// MarkupConfig configures a Markup source.
type MarkupConfig struct {
	Name    string
	BaseURL string
	// SearchPath is appended to BaseURL before the escaped query.
	SearchPath       string
	MaxItems         int
	FallbackLocation string
	Selectors        Selectors
}

// Markup searches a marketplace by scraping its HTML results page.
type Markup struct {
	cfg     MarkupConfig
	base    *url.URL
	fetcher Fetcher
	logger  *slog.Logger
	// parse reads one listing node; defaults to extract.
	parse func(*goquery.Selection) (listing.Listing, error)
}

var _ Source = (*Markup)(nil)

// NewMarkup builds a Markup source. Empty selector chains take the defaults
// chain by chain.
func NewMarkup(cfg MarkupConfig, fetcher Fetcher, logger *slog.Logger) (*Markup, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("source: markup %q: nil fetcher", cfg.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultMarkupName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMarkupBaseURL
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = "/items/q-"
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.FallbackLocation == "" {
		cfg.FallbackLocation = DefaultFallbackLocation
	}

	def := DefaultSelectors()
	sel := &cfg.Selectors
	for _, pair := range []struct{ dst, fallback *[]string }{
		{&sel.Node, &def.Node},
		{&sel.Title, &def.Title},
		{&sel.Price, &def.Price},
		{&sel.Location, &def.Location},
		{&sel.Link, &def.Link},
	} {
		if len(*pair.dst) == 0 {
			*pair.dst = *pair.fallback
		}
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("source: markup %q base url: %w", cfg.Name, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("source: markup %q base url %q is not absolute", cfg.Name, cfg.BaseURL)
	}

	m := &Markup{cfg: cfg, base: base, fetcher: fetcher, logger: logger}
	m.parse = m.extract
	return m, nil
}

func (m *Markup) Name() string { return m.cfg.Name }

// SearchURL is the URL requested for query.
func (m *Markup) SearchURL(query string) string {
	return m.base.String() + m.cfg.SearchPath + url.PathEscape(query)
}

func (m *Markup) Search(ctx context.Context, query string) Outcome {
	start := time.Now()
	out := m.search(ctx, query)
	out.Duration = time.Since(start)
	return out
}

func (m *Markup) search(ctx context.Context, query string) Outcome {
	target := m.SearchURL(query)
	resp, err := m.fetcher.Fetch(ctx, scraper.Request{Source: m.cfg.Name, URL: target})
	if failure := classify(ctx, resp, err); failure != nil {
		return Outcome{Source: m.cfg.Name, Listings: []listing.Listing{}, Failure: failure}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return failed(m.cfg.Name, ReasonShape, fmt.Errorf("parse %s: %w", target, err))
	}

	var nodes *goquery.Selection
	for _, s := range m.cfg.Selectors.Node {
		if nodes = doc.Find(s); nodes.Length() > 0 {
			break
		}
	}

	listings := make([]listing.Listing, 0, m.cfg.MaxItems)
	nodes.EachWithBreak(func(i int, node *goquery.Selection) bool {
		if i >= m.cfg.MaxItems {
			return false
		}
		l, err := m.node(node)
		if err != nil {
			m.logger.Debug("skipping node", "source", m.cfg.Name, "index", i, "err", err)
			return true
		}
		listings = append(listings, l)
		return true
	})
	return Outcome{Source: m.cfg.Name, Listings: listings}
}

// node parses one listing node. A panic while walking the node is reported
// as an error so only that node is lost.
func (m *Markup) node(node *goquery.Selection) (l listing.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract panicked: %v", r)
		}
	}()
	return m.parse(node)
}

// extract reads title, price, location and link from one listing node.
func (m *Markup) extract(node *goquery.Selection) (listing.Listing, error) {
	sel := m.cfg.Selectors
	title := firstMatch(node, sel.Title)
	price := firstMatch(node, sel.Price)
	if title == nil || price == nil {
		return listing.Listing{}, fmt.Errorf("missing title or price")
	}

	l := listing.Listing{
		Source:   m.cfg.Name,
		Title:    squash(title.Text()),
		Price:    squash(price.Text()),
		Location: m.cfg.FallbackLocation,
		Link:     m.base.String(),
	}
	if l.Title == "" || l.Price == "" {
		return listing.Listing{}, fmt.Errorf("empty title or price")
	}
	if loc := firstMatch(node, sel.Location); loc != nil {
		if text := squash(loc.Text()); text != "" {
			l.Location = text
		}
	}
	if a := firstMatch(node, sel.Link); a != nil {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			l.Link = resolve(m.base, strings.TrimSpace(href))
		}
	}
	return l, nil
}

// firstMatch returns the first element matched by the first selector in
// chain that matches anything within node.
func firstMatch(node *goquery.Selection, chain []string) *goquery.Selection {
	for _, s := range chain {
		if found := node.Find(s); found.Length() > 0 {
			return found.First()
		}
	}
	return nil
}
