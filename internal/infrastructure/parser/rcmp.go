package parser

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// ParserIDRCMP is the registry key for RCMP detachment newsrooms.
const ParserIDRCMP = "rcmp"

var rcmpArticlePath = regexp.MustCompile(`/news/|/node/\d+`)

// RCMPParser handles RCMP detachment newsroom listings, which are
// JS-rendered — every fetch in this family requests the headless-browser
// path regardless of the source's own use_browser hint, since the family
// itself requires it.
type RCMPParser struct {
	f family
}

var _ ports.Parser = (*RCMPParser)(nil)

// NewRCMPParser wires a Fetcher for the rcmp family.
func NewRCMPParser(fetcher ports.Fetcher, logger *slog.Logger) *RCMPParser {
	return &RCMPParser{f: family{
		fetcher:    fetcher,
		logger:     logger,
		titleSel:   []string{"h1", "title"},
		useBrowser: true,
	}}
}

// FetchNew implements ports.Parser.
func (p *RCMPParser) FetchNew(ctx context.Context, source domain.Source, since *time.Time) ([]domain.RawArticle, error) {
	return p.f.run(ctx, source, since, discoverAnchors, rcmpAccept)
}

// Candidates implements ports.CandidateParser.
func (p *RCMPParser) Candidates(ctx context.Context, source domain.Source) ([]string, error) {
	return p.f.candidates(ctx, source, discoverAnchors, rcmpAccept)
}

func rcmpAccept(articleURL string) bool {
	return rcmpArticlePath.MatchString(articleURL)
}

// discoverAnchors returns every anchor href on the listing page; filtering
// down to real articles is the family-specific accept function's job.
func discoverAnchors(doc *goquery.Document, _ string) []string {
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}
