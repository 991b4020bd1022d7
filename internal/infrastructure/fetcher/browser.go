package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"beatwatch/internal/domain"
	"beatwatch/internal/ports"
)

// browserPool owns a single lazily-launched headless Chrome instance,
// shared across source-tasks as spec.md §5 requires ("the headless
// browser: shared across source-tasks; each call must use independent
// connections/contexts"). Grounded on the teacher pack's
// domwatch/internal/browser.Manager lifecycle and Tab helpers.
type browserPool struct {
	mu      sync.Mutex
	browser *rod.Browser
	logger  *slog.Logger
}

func newBrowserPool(logger *slog.Logger) *browserPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &browserPool{logger: logger}
}

func (p *browserPool) ensure() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser != nil {
		return p.browser, nil
	}

	url, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch headless chrome: %v", domain.ErrNetwork, err)
	}
	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("%w: connect to chrome: %v", domain.ErrNetwork, err)
	}
	p.browser = b
	return b, nil
}

func (p *browserPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser != nil {
		_ = p.browser.Close()
		p.browser = nil
	}
}

// render opens a new stealth tab, navigates, waits for network idle, and
// returns the fully rendered outer HTML. Each call gets its own page
// (independent "connection"), even though the underlying browser process
// is shared.
func (p *browserPool) render(ctx context.Context, rawURL string, timeout time.Duration) (*ports.FetchResult, error) {
	b, err := p.ensure()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("%w: open tab: %v", domain.ErrNetwork, err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page = page.Context(navCtx)
	if err := page.Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("%w: navigate %s: %v", domain.ErrNetwork, rawURL, err)
	}
	if err := page.WaitStable(500 * time.Millisecond); err != nil {
		p.logger.WarnContext(ctx, "browser: wait stable timed out", "url", rawURL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("%w: read rendered html: %v", domain.ErrNetwork, err)
	}

	info, err := page.Info()
	finalURL := rawURL
	if err == nil && info != nil && info.URL != "" {
		finalURL = info.URL
	}

	return &ports.FetchResult{StatusCode: 200, Body: []byte(html), FinalURL: finalURL}, nil
}
