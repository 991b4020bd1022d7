package parser

import (
	"context"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// ParserIDWordPress is the registry key for blog-style sites whose article
// cards expose <time> elements.
const ParserIDWordPress = "wordpress"

// WordPressParser handles blog-style newsrooms whose article cards carry a
// <time> element. Body extraction uses the bodySelectors order shared
// across families (<article>, <main>, .content, .post-content,
// .entry-content, <body>); .entry-content is not preferred over <article>.
type WordPressParser struct {
	f family
}

var _ ports.Parser = (*WordPressParser)(nil)

// NewWordPressParser wires a Fetcher for the wordpress family.
func NewWordPressParser(fetcher ports.Fetcher, logger *slog.Logger) *WordPressParser {
	return &WordPressParser{f: family{
		fetcher:  fetcher,
		logger:   logger,
		titleSel: []string{"h1.entry-title", "h1", "title"},
	}}
}

// FetchNew implements ports.Parser.
func (p *WordPressParser) FetchNew(ctx context.Context, source domain.Source, since *time.Time) ([]domain.RawArticle, error) {
	return p.f.run(ctx, source, since, discoverTimeCardLinks, wordpressAccept)
}

// Candidates implements ports.CandidateParser.
func (p *WordPressParser) Candidates(ctx context.Context, source domain.Source) ([]string, error) {
	return p.f.candidates(ctx, source, discoverTimeCardLinks, wordpressAccept)
}

// discoverTimeCardLinks takes each <time> element's enclosing <article>
// card (or the element's parent when there is none) and returns the href
// of the first anchor inside that card.
func discoverTimeCardLinks(doc *goquery.Document, _ string) []string {
	var hrefs []string
	doc.Find("time").Each(func(_ int, t *goquery.Selection) {
		card := t.Closest("article")
		if card.Length() == 0 {
			card = t.Parent()
		}
		link := card.Find("a[href]").First()
		if href, ok := link.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}

func wordpressAccept(articleURL string) bool {
	return !isObviouslyNonArticle(articleURL)
}
