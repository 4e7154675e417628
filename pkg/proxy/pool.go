// Package proxy rotates outbound marketplace requests across a list of proxy
// endpoints, benching endpoints that keep failing.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNilProxy is returned when a nil URL is reported back to the pool.
	ErrNilProxy = errors.New("proxy: nil proxy URL")
	// ErrUnknownProxy is returned when a reported URL is not in the pool.
	ErrUnknownProxy = errors.New("proxy: not in pool")
)

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures is the failure score at which an endpoint is benched.
	MaxFailures int
	// Cooldown is how long a benched endpoint sits out.
	Cooldown time.Duration
}

type endpoint struct {
	url       *url.URL
	failures  int
	successes int
	lastUsed  time.Time
	benchedAt time.Time // zero while active
}

// Pool hands out proxies round-robin. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*endpoint
	next        int
	maxFailures int
	cooldown    time.Duration
}

// NewPool creates an empty pool. Zero config values default to 3 failures
// and a 5 minute cooldown.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// LoadFile adds one proxy per line from path. Blank lines and lines starting
// with '#' are ignored.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: open list: %w", err)
	}
	defer f.Close()

	var raw []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw = append(raw, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read list: %w", err)
	}
	return p.Add(raw...)
}

// Add parses and appends proxies. Entries without a scheme are treated as
// http proxies.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*endpoint, 0, len(rawURLs))
	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: parse %q: %w", raw, err)
		}
		parsed = append(parsed, &endpoint{url: u})
	}

	p.mu.Lock()
	p.endpoints = append(p.endpoints, parsed...)
	p.mu.Unlock()
	return nil
}

// Len reports how many proxies the pool holds, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next active proxy, or nil when the pool is empty or every
// proxy is benched.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for range p.endpoints {
		ep := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)

		if !ep.benchedAt.IsZero() {
			if now.Sub(ep.benchedAt) < p.cooldown {
				continue
			}
			ep.benchedAt = time.Time{}
			ep.failures = 0
		}
		ep.lastUsed = now
		return ep.url
	}
	return nil
}

// MarkSuccess records a successful request through proxyURL.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	return p.mark(proxyURL, func(ep *endpoint) {
		ep.successes++
		if ep.failures > 0 {
			ep.failures--
		}
	})
}

// MarkFailure records a failed request through proxyURL and benches it once
// the failure score reaches the configured maximum.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	return p.mark(proxyURL, func(ep *endpoint) {
		ep.failures++
		if ep.failures >= p.maxFailures {
			ep.benchedAt = time.Now()
		}
	})
}

func (p *Pool) mark(proxyURL *url.URL, update func(*endpoint)) error {
	if proxyURL == nil {
		return ErrNilProxy
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	target := proxyURL.String()
	for _, ep := range p.endpoints {
		if ep.url.String() == target {
			update(ep)
			return nil
		}
	}
	return ErrUnknownProxy
}
