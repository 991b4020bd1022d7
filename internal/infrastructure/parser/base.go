package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// interArticleDelay is the polite minimum delay spec.md §4.3 requires
// between article fetches within a single source.
const interArticleDelay = time.Second

// family holds the per-family settings (title selectors and the browser
// hint) used by run, candidates and fetchArticle below, which every family
// shares. The discover and accept functions that differ between the three
// parser implementations are passed to run and candidates by each family.
type family struct {
	fetcher    ports.Fetcher
	logger     *slog.Logger
	titleSel   []string
	useBrowser bool
}

// run discovers candidate URLs via discover, filters them via accept,
// fetches each accepted article sequentially (with the polite inter-article
// delay), and returns RawArticle records newest-first when publish dates
// are known; undated articles follow in listing order. It stops early once an article at or before since is seen,
// but that is only an optimization — the caller (C4) is authoritative on
// duplication, so a false continuation never causes incorrect behavior.
func (f *family) run(
	ctx context.Context,
	source domain.Source,
	since *time.Time,
	discover func(*goquery.Document, string) []string,
	accept func(string) bool,
) ([]domain.RawArticle, error) {
	listing, err := f.fetcher.Fetch(ctx, source.BaseURL, ports.FetchOptions{UseBrowser: f.useBrowser || source.UseBrowser})
	if err != nil {
		return nil, fmt.Errorf("%w: listing fetch %s: %v", domain.ErrNetwork, source.BaseURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(listing.Body)))
	if err != nil {
		return nil, fmt.Errorf("%w: parse listing %s: %v", domain.ErrParse, source.BaseURL, err)
	}

	candidates := discover(doc, listing.FinalURL)

	seen := map[string]struct{}{}
	var ordered []string
	for _, raw := range candidates {
		abs := resolveAbsolute(listing.FinalURL, raw)
		if abs == "" {
			continue
		}
		if !accept(abs) {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		ordered = append(ordered, abs)
	}

	var results []domain.RawArticle
	for i, articleURL := range ordered {
		if i > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(interArticleDelay):
			}
		}

		article, publishedAt, err := f.fetchArticle(ctx, source, articleURL)
		if err != nil {
			f.logger.WarnContext(ctx, "article fetch failed, skipping", "url", articleURL, "error", err)
			continue
		}

		results = append(results, article)

		if since != nil && publishedAt != nil && !publishedAt.After(*since) {
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].PublishedAt, results[j].PublishedAt
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})

	return results, nil
}

// candidates discovers and filters listing URLs without fetching any
// article pages, backing the dev-only /api/debug/candidates endpoint.
func (f *family) candidates(
	ctx context.Context,
	source domain.Source,
	discover func(*goquery.Document, string) []string,
	accept func(string) bool,
) ([]string, error) {
	listing, err := f.fetcher.Fetch(ctx, source.BaseURL, ports.FetchOptions{UseBrowser: f.useBrowser || source.UseBrowser})
	if err != nil {
		return nil, fmt.Errorf("%w: listing fetch %s: %v", domain.ErrNetwork, source.BaseURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(listing.Body)))
	if err != nil {
		return nil, fmt.Errorf("%w: parse listing %s: %v", domain.ErrParse, source.BaseURL, err)
	}

	seen := map[string]struct{}{}
	var ordered []string
	for _, raw := range discover(doc, listing.FinalURL) {
		abs := resolveAbsolute(listing.FinalURL, raw)
		if abs == "" || !accept(abs) {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		ordered = append(ordered, abs)
	}
	return ordered, nil
}

func (f *family) fetchArticle(ctx context.Context, source domain.Source, articleURL string) (domain.RawArticle, *time.Time, error) {
	resp, err := f.fetcher.Fetch(ctx, articleURL, ports.FetchOptions{UseBrowser: f.useBrowser || source.UseBrowser})
	if err != nil {
		return domain.RawArticle{}, nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return domain.RawArticle{}, nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	title := f.extractTitle(doc)
	body := extractBody(doc)
	publishedAt := extractPublishedAt(doc)

	canonical := domain.CanonicalizeURL(articleURL)
	externalID := domain.StableHash(source.ID, canonical, title)

	article := domain.RawArticle{
		SourceID:    source.ID,
		ExternalID:  externalID,
		URL:         canonical,
		TitleRaw:    title,
		BodyRaw:     body,
		PublishedAt: publishedAt,
		RawHTML:     sanitizeHTML(string(resp.Body)),
	}

	return article, publishedAt, nil
}

func (f *family) extractTitle(doc *goquery.Document) string {
	for _, sel := range f.titleSel {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := collapseWhitespace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

// extractPublishedAt looks at <time> elements first (datetime attribute,
// then text), falling back to any element carrying a "date" class.
func extractPublishedAt(doc *goquery.Document) *time.Time {
	var found *time.Time

	doc.Find("time").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if dt, ok := sel.Attr("datetime"); ok {
			if t, ok := parseBestEffortDate(dt); ok {
				found = &t
				return false
			}
		}
		if t, ok := parseBestEffortDate(sel.Text()); ok {
			found = &t
			return false
		}
		return true
	})
	if found != nil {
		return found
	}

	doc.Find("[class*=date]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if t, ok := parseBestEffortDate(sel.Text()); ok {
			found = &t
			return false
		}
		return true
	})
	return found
}

func resolveAbsolute(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	refURL, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}
