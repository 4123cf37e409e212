// internal/antidetect/antidetect.go
package antidetect

import (
	"fmt"
	"net/http"
)

// BrowserKind is the browser family a profile imitates.
type BrowserKind string

const (
	KindChrome  BrowserKind = "chrome"
	KindFirefox BrowserKind = "firefox"
	KindEdge    BrowserKind = "edge"
	KindSafari  BrowserKind = "safari"
)

// RequestPurpose selects between document navigations and XHR calls.
type RequestPurpose int

const (
	PurposeAPI RequestPurpose = iota
	PurposeDocument
)

// BrowserProfile is one immutable client fingerprint. A session picks a
// profile once and keeps it for its whole lifetime.
type BrowserProfile struct {
	Name             string
	Kind             BrowserKind
	UserAgent        string
	SecCHUA          string
	SecCHUAMobile    string
	SecCHUAPlatform  string
	Accept           string
	AcceptLanguage   string
	ViewportWidth    int
	ViewportHeight   int
	AdditionalHeader map[string]string
}

const (
	acceptJSON     = "application/json, text/plain, */*"
	acceptDocument = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	langKorean     = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"
	encodings      = "gzip, deflate, br"
)

var catalog = []BrowserProfile{
	{
		Name:            "chrome-121-windows",
		Kind:            KindChrome,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		SecCHUA:         `"Not A(Brand";v="99", "Google Chrome";v="121", "Chromium";v="121"`,
		SecCHUAMobile:   "?0",
		SecCHUAPlatform: `"Windows"`,
		Accept:          acceptJSON,
		AcceptLanguage:  langKorean,
		ViewportWidth:   1920,
		ViewportHeight:  1080,
	},
	{
		Name:            "chrome-120-windows",
		Kind:            KindChrome,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		SecCHUA:         `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		SecCHUAMobile:   "?0",
		SecCHUAPlatform: `"Windows"`,
		Accept:          acceptJSON,
		AcceptLanguage:  langKorean,
		ViewportWidth:   1366,
		ViewportHeight:  768,
	},
	{
		Name:            "chrome-121-macos",
		Kind:            KindChrome,
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		SecCHUA:         `"Not A(Brand";v="99", "Google Chrome";v="121", "Chromium";v="121"`,
		SecCHUAMobile:   "?0",
		SecCHUAPlatform: `"macOS"`,
		Accept:          acceptJSON,
		AcceptLanguage:  langKorean,
		ViewportWidth:   1440,
		ViewportHeight:  900,
	},
	{
		Name:           "firefox-122-windows",
		Kind:           KindFirefox,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
		Accept:         acceptJSON,
		AcceptLanguage: langKorean,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	},
	{
		Name:           "firefox-121-windows",
		Kind:           KindFirefox,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		Accept:         acceptJSON,
		AcceptLanguage: langKorean,
		ViewportWidth:  1536,
		ViewportHeight: 864,
	},
	{
		Name:           "firefox-122-macos",
		Kind:           KindFirefox,
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:122.0) Gecko/20100101 Firefox/122.0",
		Accept:         acceptJSON,
		AcceptLanguage: langKorean,
		ViewportWidth:  1440,
		ViewportHeight: 900,
	},
	{
		Name:            "edge-121-windows",
		Kind:            KindEdge,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36 Edg/121.0.0.0",
		SecCHUA:         `"Not A(Brand";v="99", "Microsoft Edge";v="121", "Chromium";v="121"`,
		SecCHUAMobile:   "?0",
		SecCHUAPlatform: `"Windows"`,
		Accept:          acceptJSON,
		AcceptLanguage:  langKorean,
		ViewportWidth:   1920,
		ViewportHeight:  1080,
	},
	{
		Name:           "safari-17-macos",
		Kind:           KindSafari,
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
		Accept:         "application/json, text/javascript, */*; q=0.01",
		AcceptLanguage: "ko-KR,ko;q=0.9",
		ViewportWidth:  1440,
		ViewportHeight: 900,
	},
}

// Catalog returns a copy of the built-in profile table.
func Catalog() []BrowserProfile {
	out := make([]BrowserProfile, len(catalog))
	copy(out, catalog)
	return out
}

// ProfileByName looks up a catalog entry.
func ProfileByName(name string) (BrowserProfile, error) {
	for _, p := range catalog {
		if p.Name == name {
			return p, nil
		}
	}
	return BrowserProfile{}, fmt.Errorf("unknown browser profile %q", name)
}

// FilterCatalog keeps the profiles whose kind is listed. An empty list
// keeps every profile.
func FilterCatalog(profiles []BrowserProfile, kinds []BrowserKind) []BrowserProfile {
	if len(kinds) == 0 {
		return profiles
	}
	allowed := make(map[BrowserKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	var out []BrowserProfile
	for _, p := range profiles {
		if allowed[p.Kind] {
			out = append(out, p)
		}
	}
	return out
}

// Headers builds the request header set of the profile. The set depends
// only on the profile kind and the purpose, never on the request count.
func (p BrowserProfile) Headers(purpose RequestPurpose, origin, referer string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", p.UserAgent)
	h.Set("Accept-Language", p.AcceptLanguage)
	h.Set("Accept-Encoding", encodings)
	h.Set("Connection", "keep-alive")
	h.Set("DNT", "1")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	if referer != "" {
		h.Set("Referer", referer)
	}

	switch purpose {
	case PurposeDocument:
		h.Set("Accept", acceptDocument)
		h.Set("Upgrade-Insecure-Requests", "1")
	default:
		h.Set("Accept", p.Accept)
		if origin != "" {
			h.Set("Origin", origin)
		}
	}

	switch p.Kind {
	case KindChrome, KindEdge:
		h.Set("sec-ch-ua", p.SecCHUA)
		h.Set("sec-ch-ua-mobile", p.SecCHUAMobile)
		h.Set("sec-ch-ua-platform", p.SecCHUAPlatform)
		if purpose == PurposeDocument {
			h.Set("Sec-Fetch-Site", "same-origin")
			h.Set("Sec-Fetch-Mode", "navigate")
			h.Set("Sec-Fetch-Dest", "document")
			h.Set("Sec-Fetch-User", "?1")
		} else {
			h.Set("Sec-Fetch-Site", "same-origin")
			h.Set("Sec-Fetch-Mode", "cors")
			h.Set("Sec-Fetch-Dest", "empty")
		}
	case KindFirefox:
		h.Set("TE", "trailers")
	}

	for k, v := range p.AdditionalHeader {
		h.Set(k, v)
	}
	return h
}
