package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/models"
)

// ChromedpFetcher renders pages in headless Chrome before serializing the DOM.
// Used when crawler.enable_javascript is set, for sites that build their
// markup client-side.
type ChromedpFetcher struct {
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	config          common.CrawlerConfig
	logger          arbor.ILogger
}

// NewChromedpFetcher starts a headless Chrome allocator shared by all fetches
func NewChromedpFetcher(config common.CrawlerConfig, logger arbor.ILogger) (*ChromedpFetcher, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Debug().Msg("Headless Chrome allocator started")

	return &ChromedpFetcher{
		allocatorCtx:    allocatorCtx,
		allocatorCancel: allocatorCancel,
		config:          config,
		logger:          logger,
	}, nil
}

// Fetch navigates to the page, waits for client-side rendering, and captures
// the rendered DOM.
func (f *ChromedpFetcher) Fetch(ctx context.Context, pageURL string) (*models.PageSnapshot, error) {
	start := time.Now()

	tabCtx, tabCancel := chromedp.NewContext(f.allocatorCtx)
	defer tabCancel()

	timeout := f.config.RequestTimeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, runCancel := context.WithTimeout(tabCtx, timeout)
	defer runCancel()

	// Honour caller cancellation on top of the tab's own timeout
	go func() {
		select {
		case <-ctx.Done():
			runCancel()
		case <-runCtx.Done():
		}
	}()

	wait := f.config.JavaScriptWaitTime.Std()
	if wait <= 0 {
		wait = 2 * time.Second
	}

	var html string
	var finalURL string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(wait),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp fetch failed for %s: %w", pageURL, err)
	}

	if finalURL == "" {
		finalURL = pageURL
	}

	snapshot := &models.PageSnapshot{
		URL: finalURL,
		// Chrome does not surface the HTTP status for main-frame navigations
		// through this path; a rendered document implies a successful fetch.
		StatusCode: 200,
		HTML:       html,
		FetchTime:  time.Since(start),
		FetchedAt:  time.Now(),
	}
	snapshot.Title, snapshot.Lang = parseTitleAndLang(html)

	f.logger.Debug().
		Str("url", snapshot.URL).
		Dur("fetch_time", snapshot.FetchTime).
		Msg("Page rendered and fetched via headless Chrome")

	return snapshot, nil
}

// Close shuts down the Chrome allocator
func (f *ChromedpFetcher) Close() error {
	if f.allocatorCancel != nil {
		f.allocatorCancel()
	}
	return nil
}
