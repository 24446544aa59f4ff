package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/models"
)

// maxBodyBytes caps the serialized DOM retained per page.
const maxBodyBytes = 5 << 20 // 5 MB

// HTTPFetcher fetches pages over plain HTTP
type HTTPFetcher struct {
	client *http.Client
	config common.CrawlerConfig
	logger arbor.ILogger
}

// NewHTTPFetcher creates a fetcher with redirect-loop protection
func NewHTTPFetcher(config common.CrawlerConfig, logger arbor.ILogger) *HTTPFetcher {
	maxRedirects := config.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}

	client := &http.Client{
		Timeout: config.RequestTimeout.Std(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &HTTPFetcher{
		client: client,
		config: config,
		logger: logger,
	}
}

// Fetch retrieves one page, recording the final URL after redirects, response
// status, page title, document language, and the raw serialized DOM.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*models.PageSnapshot, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}

	snapshot := &models.PageSnapshot{
		URL:        resp.Request.URL.String(), // final URL after redirects
		StatusCode: resp.StatusCode,
		HTML:       string(body),
		FetchTime:  time.Since(start),
		FetchedAt:  time.Now(),
	}
	snapshot.Title, snapshot.Lang = parseTitleAndLang(snapshot.HTML)

	f.logger.Debug().
		Str("url", snapshot.URL).
		Int("status", snapshot.StatusCode).
		Dur("fetch_time", snapshot.FetchTime).
		Msg("Page fetched")

	return snapshot, nil
}

func parseTitleAndLang(html string) (title string, lang string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	lang, _ = doc.Find("html").First().Attr("lang")
	return title, strings.TrimSpace(lang)
}
