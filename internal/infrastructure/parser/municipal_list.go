package parser

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// ParserIDMunicipalList is the registry key for list/card layouts whose
// article URLs share a "news-like" path segment.
const ParserIDMunicipalList = "municipal_list"

// newsLikeSegments is the allowlist spec.md §4.2 names: the URL path must
// contain one of these to be considered a candidate article.
var newsLikeSegments = []string{"news", "release", "media-release", "newsroom"}

// nonArticleKeywords is the blacklist municipal_list rejects obvious
// non-article paths with (and wordpress reuses for the same purpose).
var nonArticleKeywords = []string{
	"/tag/", "/category/", "/page/", "/author/", "/wp-content/",
	"/feed", ".css", ".js", ".pdf", ".jpg", ".png", "/search", "#",
}

// MunicipalListParser handles list/card layouts where article URLs share a
// news-like path segment.
type MunicipalListParser struct {
	f family
}

var _ ports.Parser = (*MunicipalListParser)(nil)

// NewMunicipalListParser wires a Fetcher for the municipal_list family.
func NewMunicipalListParser(fetcher ports.Fetcher, logger *slog.Logger) *MunicipalListParser {
	return &MunicipalListParser{f: family{
		fetcher:  fetcher,
		logger:   logger,
		titleSel: []string{"h1", "title"},
	}}
}

// FetchNew implements ports.Parser.
func (p *MunicipalListParser) FetchNew(ctx context.Context, source domain.Source, since *time.Time) ([]domain.RawArticle, error) {
	return p.f.run(ctx, source, since, discoverAnchors, municipalAccept)
}

// Candidates implements ports.CandidateParser.
func (p *MunicipalListParser) Candidates(ctx context.Context, source domain.Source) ([]string, error) {
	return p.f.candidates(ctx, source, discoverAnchors, municipalAccept)
}

func municipalAccept(articleURL string) bool {
	if isObviouslyNonArticle(articleURL) {
		return false
	}
	path := articleURL
	if u, err := url.Parse(articleURL); err == nil {
		path = u.Path
	}
	lower := strings.ToLower(path)
	for _, seg := range newsLikeSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	return false
}

// isObviouslyNonArticle applies the shared keyword blacklist.
func isObviouslyNonArticle(articleURL string) bool {
	lower := strings.ToLower(articleURL)
	for _, kw := range nonArticleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
