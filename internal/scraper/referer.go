// internal/scraper/referer.go
package scraper

import (
	"strings"

	"github.com/valpere/landwatch/internal/session"
)

// RefererFor picks the page a real visitor would have been on when the
// browser issued apiURL.
func RefererFor(base, apiURL string) string {
	switch {
	case strings.Contains(apiURL, "/api/complexes"):
		return session.LandingURL(base, session.PageRoot)
	case strings.Contains(apiURL, "/api/articles/complex/"):
		return session.LandingURL(base, session.PageComplexes)
	case strings.Contains(apiURL, "/api/articles/"):
		return session.LandingURL(base, session.PageArticles)
	default:
		return session.LandingURL(base, session.PageRoot)
	}
}

// PageFor returns the landing page kind matching apiURL.
func PageFor(apiURL string) session.PageKind {
	switch {
	case strings.Contains(apiURL, "/api/complexes"):
		return session.PageComplexes
	case strings.Contains(apiURL, "/api/articles/complex/"):
		return session.PageComplex
	case strings.Contains(apiURL, "/api/articles/"):
		return session.PageArticles
	default:
		return session.PageRoot
	}
}
