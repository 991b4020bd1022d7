// Package parser implements the three C3 parser families (rcmp, wordpress,
// municipal_list) sharing the Parser contract, plus the extraction helpers
// common to all of them. Listing/article traversal is built on goquery,
// the teacher's own HTML-parsing dependency.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// bodySelectors is the priority order spec.md §4.3 fixes: <article>, <main>,
// a .content/.post-content/.entry-content container, then <body>.
var bodySelectors = []string{"article", "main", ".content", ".post-content", ".entry-content", "body"}

// extractBody walks bodySelectors in priority order and returns the first
// non-empty match's sanitized, whitespace-collapsed text.
func extractBody(doc *goquery.Document) string {
	stripNoise(doc.Selection)

	for _, sel := range bodySelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := collapseWhitespace(node.Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// stripNoise removes script/style/nav/header/footer nodes in place, per
// spec.md §4.3.
func stripNoise(sel *goquery.Selection) {
	sel.Find("script, style, nav, header, footer").Remove()
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// htmlPolicy is the bluemonday UGC policy sanitizeHTML runs the document
// through before storage, instead of hand-rolled tag stripping, so raw_html never
// carries scripts or inline event handlers even though it's kept for later
// reparse.
var htmlPolicy = bluemonday.UGCPolicy()

func sanitizeHTML(raw string) string {
	return htmlPolicy.Sanitize(raw)
}

// dateLayouts lists the ≥10 best-effort formats spec.md §4.3 requires
// publish-date extraction to try across the three parser families.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday, January 2, 2006",
	"01/02/2006",
	"02/01/2006",
	"June 2, 2006 3:04pm",
}

// parseBestEffortDate tries every layout in dateLayouts against the
// trimmed text and returns the first successful parse.
func parseBestEffortDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
