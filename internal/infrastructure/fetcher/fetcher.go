// Package fetcher implements C1: retrieving an HTTP resource with retries,
// timeouts, and optional headless-browser rendering.
package fetcher

import (
	"context"
	"log/slog"
	"net/http"

	"beatwatch/internal/ports"
)

const defaultUserAgent = "beatwatch/1.0 (+https://github.com/beatwatch)"

// Fetcher implements ports.Fetcher, dispatching to the direct-HTTP path or
// the headless-browser path per FetchOptions.UseBrowser.
type Fetcher struct {
	client  *http.Client
	browser *browserPool
	logger  *slog.Logger
}

var _ ports.Fetcher = (*Fetcher)(nil)

// New builds a Fetcher sharing one http.Client and one lazily-launched
// browser across every call, per spec.md §5's shared-resource model.
func New(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  &http.Client{},
		browser: newBrowserPool(logger),
		logger:  logger,
	}
}

// Close releases the shared headless browser, if one was ever launched.
func (f *Fetcher) Close() {
	f.browser.close()
}

// Fetch retrieves rawURL, using a headless render when opts.UseBrowser is
// set; otherwise going straight to HTTP with retry/backoff.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts ports.FetchOptions) (*ports.FetchResult, error) {
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	if opts.UseBrowser {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		return f.browser.render(ctx, rawURL, timeout)
	}

	return httpFetch(ctx, f.client, userAgent, rawURL, opts)
}
