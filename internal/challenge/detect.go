// Package challenge detects and resolves anti-automation challenges that
// replace the expected page content mid-run.
package challenge

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/paagrab/internal/driver"
)

// urlMarkers flag a challenge by redirect target alone.
var urlMarkers = []string{"sorry/index", "/recaptcha/"}

// sourceMarkers flag a challenge by page text. Only the head of the source
// is inspected; answer bodies can legitimately mention these words.
var sourceMarkers = []string{"unusual traffic", "captcha"}

const sourceProbeLimit = 5000

// Detected reports whether the current page is a challenge rather than the
// expected content. Read-only probe.
func Detected(ctx context.Context, s driver.Session) bool {
	if url, err := s.URL(ctx); err == nil {
		lower := strings.ToLower(url)
		for _, m := range urlMarkers {
			if strings.Contains(lower, m) {
				return true
			}
		}
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return false
	}
	if len(html) > sourceProbeLimit {
		html = html[:sourceProbeLimit]
	}
	lower := strings.ToLower(html)
	for _, m := range sourceMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

var siteKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-sitekey="([^"]+)"`),
	regexp.MustCompile(`sitekey['"]?\s*[:=]\s*['"]([^'"]+)`),
}

// SiteKey extracts the reCAPTCHA site key from the challenge page. The
// structured attribute is tried first; inline-script patterns cover pages
// that attach the key from JavaScript.
func SiteKey(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		if key, ok := doc.Find("[data-sitekey]").First().Attr("data-sitekey"); ok && key != "" {
			return key
		}
	}
	for _, pat := range siteKeyPatterns {
		if m := pat.FindStringSubmatch(html); m != nil {
			return m[1]
		}
	}
	return ""
}
