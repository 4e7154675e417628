// Package scraper performs the single outbound request each marketplace
// source makes per search, dressed up as browser traffic.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/haggle/internal/bypass"
	"github.com/FranksOps/haggle/internal/fingerprint"
	"github.com/FranksOps/haggle/internal/metrics"
	"github.com/FranksOps/haggle/pkg/httpclient"
	"github.com/FranksOps/haggle/pkg/proxy"
	"github.com/FranksOps/haggle/pkg/ratelimit"
	"github.com/FranksOps/haggle/pkg/useragent"
	"github.com/google/uuid"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

// DefaultHeader returns the identity headers sent with every request besides
// the User-Agent.
func DefaultHeader() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Referer", "https://www.google.com/")
	return h
}

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
	// Pause is drawn and slept before every request.
	Pause ratelimit.Pause
	// Header holds the identity headers; nil means DefaultHeader.
	Header http.Header
	// Detectors recognize bot walls; nil means bypass.DefaultDetectors.
	Detectors []bypass.Detector
	// InsecureSkipVerify is for tests against self-signed servers.
	InsecureSkipVerify bool
}

// Request is one outbound GET.
type Request struct {
	// Source labels metrics and logs.
	Source string
	URL    string
	// Header is merged over the identity headers.
	Header http.Header
}

// Response is the captured outcome of a Request that reached the server.
type Response struct {
	ID         string
	Source     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	// BlockedBy names the bot-protection vendor that served a challenge
	// instead of content; empty when none was detected.
	BlockedBy string
	CreatedAt time.Time
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher issues requests through a fingerprinted transport, rotating
// User-Agents and proxies. It holds no per-request state and is safe for
// concurrent use.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher builds a Fetcher, applying defaults for zero config values.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpclient.DefaultTimeout
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Header == nil {
		cfg.Header = DefaultHeader()
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}

	// The transport is shared across requests; the proxy for a given request
	// travels in its context.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{
		Proxy:              proxyFunc,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Fetch waits for the limiter and the random pause, then GETs req.URL. Any
// response that arrives is returned with a nil error, whatever its status;
// the error is non-nil only when no response was obtained.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scraper: rate limit: %w", err)
	}
	if err := f.config.Pause.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scraper: pause: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request: %w", err)
	}
	for k, vals := range f.config.Header {
		httpReq.Header[k] = append([]string(nil), vals...)
	}
	for k, vals := range req.Header {
		httpReq.Header[k] = append([]string(nil), vals...)
	}
	httpReq.Header.Set("User-Agent", f.config.UAPool.Random())

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		httpReq = httpReq.WithContext(context.WithValue(httpReq.Context(), proxyKey, activeProxy))
	}

	resp, err := f.client.Do(httpReq.Context(), httpReq)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		metrics.RecordFetch(req.Source, 0, false, time.Since(start), 0)
		return nil, fmt.Errorf("scraper: GET %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordFetch(req.Source, 0, false, time.Since(start), len(body))
		return nil, fmt.Errorf("scraper: read %s: %w", req.URL, err)
	}

	result := &Response{
		ID:         uuid.New().String(),
		Source:     req.Source,
		URL:        req.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
		CreatedAt:  start.UTC(),
	}
	result.BlockedBy, _ = bypass.Detect(bypass.Page{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, f.config.Detectors)

	metrics.RecordFetch(req.Source, result.StatusCode, result.BlockedBy != "", result.Duration, len(body))
	return result, nil
}

// IsTimeout reports whether err came from a deadline: the client timeout,
// a context deadline, or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
