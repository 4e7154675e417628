//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/haggle/internal/analyzer"
	"github.com/FranksOps/haggle/internal/fingerprint"
	"github.com/FranksOps/haggle/internal/listing"
	"github.com/FranksOps/haggle/internal/pipeline"
	"github.com/FranksOps/haggle/internal/report"
	"github.com/FranksOps/haggle/internal/scraper"
	"github.com/FranksOps/haggle/internal/server"
	"github.com/FranksOps/haggle/internal/source"
	"github.com/FranksOps/haggle/internal/storage"
	"github.com/FranksOps/haggle/internal/storage/sqlite"
	"github.com/FranksOps/haggle/pkg/proxy"
	"github.com/FranksOps/haggle/pkg/ratelimit"
	"github.com/FranksOps/haggle/pkg/useragent"
)

const feedBody = `{"mods":{"listItems":[
	{"name":"Apple iPhone 13 128GB Midnight","price":"Rs. 180,000","location":"Karachi","itemUrl":"//www.daraz.pk/products/i1.html"},
	{"name":"iPhone 13 Silicone Case","price":"Rs. 1,500","location":"Lahore","itemUrl":"//www.daraz.pk/products/i2.html"},
	{"name":"Samsung Galaxy S21 Ultra","price":"Rs. 150,000","location":"Islamabad","itemUrl":"//www.daraz.pk/products/i3.html"}
]}}`

const markupBody = `<html><body><ul>
<li aria-label="Listing"><a href="/item/1"><h2>iPhone 13 PTA approved</h2></a><span aria-label="Price">Rs 170,000</span><span aria-label="Location">Gulberg, Lahore</span></li>
<li aria-label="Listing"><a href="/item/2"><h2>Honda CD 70 motorcycle</h2></a><span aria-label="Price">Rs 120,000</span></li>
</ul></body></html>`

func marketplaces(t *testing.T, markupHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ajax") != "true" || r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			http.Error(w, "expected ajax request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, feedBody)
	})
	if markupHandler == nil {
		markupHandler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, markupBody)
		}
	}
	mux.HandleFunc("/items/", markupHandler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newPipeline(t *testing.T, fetcher *scraper.Fetcher, base string) *pipeline.Pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	feed, err := source.NewFeed(source.FeedConfig{Endpoint: base + "/catalog/"}, fetcher, logger)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	markup, err := source.NewMarkup(source.MarkupConfig{BaseURL: base}, fetcher, logger)
	if err != nil {
		t.Fatalf("markup: %v", err)
	}

	return &pipeline.Pipeline{
		Sources:    []source.Source{feed, markup},
		Matcher:    analyzer.NewMatcher(analyzer.Config{}),
		Summarizer: report.NewSummarizer(0, 0),
		Logger:     logger,
	}
}

func TestIntegration_CompareOverHTTP(t *testing.T) {
	market := marketplaces(t, nil)

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo, // Use Go profile for stdlib HTTP tests internally
		Limiter:     ratelimit.NewLimiter(0, 0),
		Pause:       ratelimit.Pause{Min: time.Millisecond, Max: 5 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	store, err := sqlite.New("file:integration?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer store.Close()

	p := newPipeline(t, fetcher, market.URL)
	api := httptest.NewServer(server.New(server.Config{}, p, store, nil).Handler())
	defer api.Close()

	resp, err := http.Post(api.URL+"/api/compare-prices", "application/json", strings.NewReader(`{"title":"iPhone 13"}`))
	if err != nil {
		t.Fatalf("compare request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result listing.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("invalid response: %v", err)
	}

	titles := make([]string, len(result.Results))
	for i, r := range result.Results {
		titles[i] = r.Title
		if r.Title == "Samsung Galaxy S21 Ultra" || r.Title == "Honda CD 70 motorcycle" {
			t.Errorf("unrelated listing matched: %q", r.Title)
		}
		if i > 0 && r.MatchScore > result.Results[i-1].MatchScore {
			t.Errorf("results not sorted by score: %v", titles)
		}
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected 3 matched listings, got %v", titles)
	}

	if result.Insights.Count != 3 || result.Insights.Min != 1500 || result.Insights.Max != 180000 {
		t.Errorf("unexpected insights %+v", result.Insights)
	}
	if len(result.Sources) != 2 || result.Sources[0].Count != 3 || result.Sources[1].Count != 2 {
		t.Errorf("unexpected source statuses %+v", result.Sources)
	}

	var link string
	for _, r := range result.Results {
		if r.Source == "OLX" {
			link = r.Link
		}
	}
	if link != market.URL+"/item/1" {
		t.Errorf("expected OLX link resolved against base, got %q", link)
	}

	hist, err := http.Get(api.URL + "/api/searches?title=iphone")
	if err != nil {
		t.Fatalf("history request failed: %v", err)
	}
	defer hist.Body.Close()

	var history struct {
		Searches []storage.SearchRecord `json:"searches"`
	}
	if err := json.NewDecoder(hist.Body).Decode(&history); err != nil {
		t.Fatalf("invalid history: %v", err)
	}
	if len(history.Searches) != 1 || history.Searches[0].Count != 3 || history.Searches[0].Statistics != result.Insights {
		t.Errorf("expected saved search, got %+v", history.Searches)
	}
}

func TestIntegration_BotWallDegradesSource(t *testing.T) {
	market := marketplaces(t, func(w http.ResponseWriter, r *http.Request) {
		// Simulate a bot defense page from Cloudflare
		w.Header().Set("Server", "cloudflare")
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><body>cf-browser-verification</body></html>`)
	})

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{Timeout: 5 * time.Second, Fingerprint: fingerprint.ProfileGo})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	result, err := newPipeline(t, fetcher, market.URL).Compare(context.Background(), "iPhone 13")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	if len(result.Results) != 2 {
		t.Errorf("expected the feed's two matches, got %d", len(result.Results))
	}
	olx := result.Sources[1]
	if olx.Source != "OLX" || !strings.HasPrefix(olx.Failure, string(source.ReasonBlocked)) {
		t.Errorf("expected blocked OLX status, got %+v", olx)
	}

	var buf bytes.Buffer
	if err := report.WriteText(&buf, result); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "Cloudflare") {
		t.Errorf("expected failure reason in report:\n%s", buf.String())
	}
}

func TestIntegration_MarketplaceTimeout(t *testing.T) {
	market := marketplaces(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, markupBody)
	})

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{Timeout: 100 * time.Millisecond, Fingerprint: fingerprint.ProfileGo})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	result, err := newPipeline(t, fetcher, market.URL).Compare(context.Background(), "iPhone 13")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if !strings.HasPrefix(result.Sources[1].Failure, string(source.ReasonTimeout)) {
		t.Errorf("expected timeout status, got %+v", result.Sources[1])
	}
	if result.Sources[0].Failure != "" {
		t.Errorf("expected healthy feed, got %+v", result.Sources[0])
	}
}

func TestIntegration_ProxyRotation(t *testing.T) {
	var proxyHits int32
	// The proxy answers every request itself with the feed payload.
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&proxyHits, 1)
		if r.Host != "daraz.example" {
			http.Error(w, "unexpected host "+r.Host, http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, feedBody)
	}))
	defer proxySrv.Close()

	pPool := proxy.NewPool(proxy.Config{})
	if err := pPool.Add(proxySrv.URL); err != nil {
		t.Fatalf("add proxy: %v", err)
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		ProxyPool:   pPool,
		UAPool:      useragent.NewPool([]string{"IntegrationTest-UA"}),
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	feed, err := source.NewFeed(source.FeedConfig{Endpoint: "http://daraz.example/catalog/"}, fetcher, nil)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}

	out := feed.Search(context.Background(), "iphone 13")
	if out.Failure != nil {
		t.Fatalf("unexpected failure: %v", out.Failure)
	}
	if atomic.LoadInt32(&proxyHits) == 0 {
		t.Errorf("expected proxy server to be hit, got 0")
	}
	if len(out.Listings) != 3 {
		t.Errorf("expected 3 listings through the proxy, got %d", len(out.Listings))
	}
}
