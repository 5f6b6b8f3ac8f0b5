// Package acquire obtains normalized markdown content for URLs via a
// fallback chain: browser render for pages, OCR then download/convert for
// documents.
package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Page is a rendered DOM snapshot.
type Page struct {
	URL      string
	FinalURL string
	Body     []byte
}

// Renderer renders pages in a browser session.
type Renderer interface {
	Navigate(ctx context.Context, rawURL string) error
	Render(ctx context.Context, rawURL string) (Page, error)
	Close(ctx context.Context) error
}

// RendererConfig controls the shared browser session.
type RendererConfig struct {
	Headless   bool
	NavTimeout time.Duration
	UserAgent  string
}

// ChromedpRenderer renders pages using Chrome via chromedp. One browser
// session is shared across the whole crawl so cookies and any interactive
// login survive between renders; only one URL is ever in flight.
type ChromedpRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	timeout         time.Duration
}

// NewChromedpRenderer starts the browser session. A failure here is a
// fatal setup error for the run.
func NewChromedpRenderer(cfg RendererConfig, logger *zap.Logger) (*ChromedpRenderer, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		timeout:         cfg.NavTimeout,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (r *ChromedpRenderer) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

// Navigate opens a URL in the main browser tab and leaves it there. Used
// for the manual-authentication bootstrap; no scraping happens.
func (r *ChromedpRenderer) Navigate(ctx context.Context, rawURL string) error {
	navCtx, cancel := context.WithTimeout(r.browserCtx, r.timeout)
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(navCtx, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// Render executes the page with JavaScript enabled and returns the DOM
// snapshot once the body is ready, bounded by the nav timeout.
func (r *ChromedpRenderer) Render(ctx context.Context, rawURL string) (Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var html, finalURL string
	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return Page{}, fmt.Errorf("chromedp run: %w", err)
	}

	if finalURL == "" {
		finalURL = rawURL
	}
	return Page{
		URL:      rawURL,
		FinalURL: finalURL,
		Body:     []byte(html),
	}, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
