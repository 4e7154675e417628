// Package fingerprint builds HTTP transports whose TLS ClientHello mimics a
// real browser, so marketplaces that fingerprint TLS see ordinary traffic.
package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names a TLS fingerprint.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // plain crypto/tls
	ProfileRandom  Profile = "random" // randomized uTLS hello
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedALPN,
}

// ParseProfile maps a config value onto a Profile. The empty string selects
// ProfileChrome.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProfileChrome, nil
	}
	if p == ProfileGo {
		return p, nil
	}
	if _, ok := helloIDs[p]; !ok {
		return "", fmt.Errorf("fingerprint: unknown profile %q", s)
	}
	return p, nil
}

// Options tune the transport returned by Transport.
type Options struct {
	// Proxy selects the proxy per request; nil means no proxy.
	Proxy func(*http.Request) (*url.URL, error)
	// InsecureSkipVerify disables certificate checks. Only for tests against
	// self-signed servers.
	InsecureSkipVerify bool
}

// Transport returns a round tripper presenting profile p during the TLS
// handshake. ProfileGo yields a plain cloned http.Transport.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = opts.Proxy

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	helloID, ok := helloIDs[p]
	if !ok {
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		rawConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		cfg := &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}
		var conn *utls.UConn
		if spec, ok := http1Spec(helloID); ok {
			conn = utls.UClient(rawConn, cfg, utls.HelloCustom)
			if err := conn.ApplyPreset(spec); err != nil {
				_ = rawConn.Close()
				return nil, fmt.Errorf("fingerprint: %s preset: %w", p, err)
			}
		} else {
			conn = utls.UClient(rawConn, cfg, helloID)
		}
		if err := conn.HandshakeContext(ctx); err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("fingerprint: %s handshake with %s: %w", p, host, err)
		}
		return conn, nil
	}

	return transport, nil
}

// http1Spec returns the ClientHello for id with ALPN limited to http/1.1.
// net/http cannot detect h2 on a uTLS connection, so h2 must not be
// negotiated. Randomized hellos have no fixed spec and report false.
func http1Spec(id utls.ClientHelloID) (*utls.ClientHelloSpec, bool) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, false
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec, true
}
