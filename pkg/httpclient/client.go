// Package httpclient builds the http.Client used for marketplace requests:
// bounded timeout, redirect policy and an optional cookie jar on top of a
// caller supplied transport.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

const (
	// DefaultTimeout bounds a single request including reading the body.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxRedirects is used when Config.MaxRedirects is zero.
	DefaultMaxRedirects = 10
)

// ErrNilContext is returned by Do when called without a context.
var ErrNilContext = errors.New("httpclient: nil context")

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps followed redirects. Zero means DefaultMaxRedirects,
	// a negative value disables following redirects entirely.
	MaxRedirects int
	UseCookieJar bool
	// Transport is typically a fingerprinted round tripper.
	Transport http.RoundTripper
}

// Client wraps http.Client so every request is bound to a caller context.
type Client struct {
	*http.Client
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	c := &http.Client{Timeout: cfg.Timeout}

	if cfg.MaxRedirects < 0 {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		limit := cfg.MaxRedirects
		c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("httpclient: stopped after %d redirects", limit)
			}
			return nil
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: cookie jar: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c}, nil
}

// Do sends req bound to ctx. The client timeout still applies on top of any
// deadline carried by ctx.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}
