// Package bypass recognizes responses where a bot-protection vendor
// challenged or blocked the request instead of serving the marketplace page.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Page is the part of an HTTP response the detectors look at.
type Page struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports the protection vendor that blocked page, if any.
type Detector func(page Page) (vendor string, blocked bool)

// DefaultDetectors returns the detectors for the vendors seen in front of
// marketplaces.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
		detectImperva,
	}
}

// Detect runs page through detectors and returns the first vendor that
// matches.
func Detect(page Page, detectors []Detector) (string, bool) {
	for _, d := range detectors {
		if vendor, blocked := d(page); blocked {
			return vendor, true
		}
	}
	return "", false
}

func headerContains(h http.Header, key, needle string) bool {
	return strings.Contains(strings.ToLower(h.Get(key)), needle)
}

func bodyContainsAny(body []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(body, []byte(n)) {
			return true
		}
	}
	return false
}

func detectCloudflare(p Page) (string, bool) {
	if p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusServiceUnavailable {
		return "", false
	}
	if headerContains(p.Header, "Server", "cloudflare") ||
		bodyContainsAny(p.Body, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return "Cloudflare", true
	}
	return "", false
}

func detectAkamai(p Page) (string, bool) {
	if p.StatusCode != http.StatusForbidden {
		return "", false
	}
	if headerContains(p.Header, "Server", "akamai") {
		return "Akamai", true
	}
	// Akamai's generic block page carries a reference number.
	if bodyContainsAny(p.Body, "Reference #") && bodyContainsAny(p.Body, "Access Denied") {
		return "Akamai", true
	}
	return "", false
}

func detectDataDome(p Page) (string, bool) {
	if p.StatusCode != http.StatusForbidden {
		return "", false
	}
	if headerContains(p.Header, "Server", "datadome") ||
		p.Header.Get("X-DataDome") != "" || p.Header.Get("X-DataDome-Response") != "" ||
		bodyContainsAny(p.Body, "geo.captcha-delivery.com", "datadome") {
		return "DataDome", true
	}
	return "", false
}

func detectPerimeterX(p Page) (string, bool) {
	if p.StatusCode != http.StatusForbidden {
		return "", false
	}
	if p.Header.Get("X-Px-Captcha") != "" ||
		bodyContainsAny(p.Body, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return "PerimeterX", true
	}
	return "", false
}

func detectImperva(p Page) (string, bool) {
	if p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusOK {
		return "", false
	}
	// Imperva serves its interstitial with a 200, so only body markers count.
	if bodyContainsAny(p.Body, "_Incapsula_Resource", "Incapsula incident ID") {
		return "Imperva", true
	}
	return "", false
}
