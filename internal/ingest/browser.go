package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/syncerr"
)

// MinPageInterval spaces out consecutive headless page loads.
const MinPageInterval = 2 * time.Second

// Browser renders pages in headless Chrome for sources that only serve their
// tables to a real browser.
type Browser struct {
	mu          sync.Mutex
	lastRequest time.Time
	interval    time.Duration
	timeout     time.Duration
	logger      *logging.Logger

	allocCtx context.Context
	cancel   context.CancelFunc
}

func NewBrowser(userAgent string, timeout time.Duration, logger *logging.Logger) *Browser {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Browser{
		interval: MinPageInterval,
		timeout:  timeout,
		logger:   logger.Named("browser"),
		allocCtx: allocCtx,
		cancel:   cancel,
	}
}

func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// FetchPage navigates to url and returns the rendered HTML. Headers are not
// applied; the browser sends its own.
func (b *Browser) FetchPage(ctx context.Context, url string, _ map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.lastRequest.IsZero() {
		if wait := b.interval - time.Since(b.lastRequest); wait > 0 {
			b.logger.DebugContext(ctx, "rate limiting page load", "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	defer func() { b.lastRequest = time.Now() }()

	browserCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, b.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`table`, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", syncerr.SourceUnreachable(err, "render %s", url)
	}
	if html == "" {
		return "", syncerr.ShapeMismatch("render %s: empty document", url)
	}
	return html, nil
}
