// -----------------------------------------------------------------------
// Crawler - bounded breadth-first same-origin crawl from a root URL
// -----------------------------------------------------------------------

package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/models"
)

type service struct {
	fetcher     Fetcher
	extractor   *LinkExtractor
	rateLimiter *RateLimiter
	retry       *RetryPolicy
	config      common.CrawlerConfig
	logger      arbor.ILogger
}

// NewService creates the crawl service. When config.EnableJavaScript is set
// the caller should pass a ChromedpFetcher; otherwise an HTTPFetcher.
func NewService(fetcher Fetcher, config common.CrawlerConfig, logger arbor.ILogger) Service {
	return &service{
		fetcher:     fetcher,
		extractor:   NewLinkExtractor(logger),
		rateLimiter: NewRateLimiter(config.RequestDelay.Std()),
		retry:       NewRetryPolicy(),
		config:      config,
		logger:      logger,
	}
}

// Crawl walks the site breadth-first from the root. Only same-origin links
// are followed; pages are deduplicated by canonical URL; the walk stops when
// the frontier empties, the page cap is reached, or the crawl budget expires.
// A root fetch failure is fatal; later per-page failures are recorded on the
// page and the crawl continues.
func (s *service) Crawl(ctx context.Context, req *CrawlRequest) (*models.CrawlResult, error) {
	start := time.Now()

	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = s.config.DefaultMaxPages
	}

	if s.config.CrawlBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CrawlBudget.Std())
		defer cancel()
	}

	rootCanonical, err := common.CanonicalURL(req.RootURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid root URL: %v", models.ErrCrawlFatal, err)
	}

	s.logger.Info().
		Str("root_url", rootCanonical).
		Int("max_pages", maxPages).
		Msg("Starting crawl")

	result := &models.CrawlResult{RootURL: rootCanonical}
	visited := map[string]bool{rootCanonical: true}
	frontier := []string{rootCanonical}

	for len(frontier) > 0 && len(result.Pages) < maxPages {
		if err := ctx.Err(); err != nil {
			// Budget exhausted mid-walk: keep what we have, root permitting
			if len(result.Pages) == 0 {
				return nil, fmt.Errorf("%w: crawl budget exhausted before root fetch: %v", models.ErrCrawlFatal, err)
			}
			break
		}

		pageURL := frontier[0]
		frontier = frontier[1:]
		isRoot := len(result.Pages) == 0

		snapshot := s.fetchPage(ctx, pageURL)

		if isRoot && (snapshot.Error != "" || snapshot.StatusCode >= 400) {
			return nil, fmt.Errorf("%w: root fetch failed for %s: status=%d %s",
				models.ErrCrawlFatal, pageURL, snapshot.StatusCode, snapshot.Error)
		}

		if snapshot.Error != "" {
			result.PagesFailed++
		}

		final := pageURL
		if canon, err := common.CanonicalURL(snapshot.URL); err == nil {
			final = canon
		}
		if isRoot {
			// The crawl root is wherever the requested URL landed after
			// redirects; scope and reporting follow the final URL.
			result.RootURL = final
		}
		// Redirects can land two frontier URLs on the same page; drop the
		// later arrival rather than record a URL twice.
		if final != pageURL {
			if visited[final] && !isRoot {
				continue
			}
			visited[final] = true
		}
		result.Pages = append(result.Pages, *snapshot)

		if snapshot.Error != "" || snapshot.HTML == "" {
			continue
		}

		links, err := s.extractor.ExtractSameOriginLinks(snapshot.HTML, snapshot.URL)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", snapshot.URL).Msg("Link extraction failed")
			continue
		}
		for _, link := range links {
			if !visited[link] {
				visited[link] = true
				frontier = append(frontier, link)
			}
		}
	}

	result.Elapsed = time.Since(start)

	s.logger.Info().
		Str("root_url", rootCanonical).
		Int("pages", len(result.Pages)).
		Int("pages_failed", result.PagesFailed).
		Dur("elapsed", result.Elapsed).
		Msg("Crawl completed")

	return result, nil
}

// fetchPage fetches one URL with rate limiting and retry, folding failures
// into the snapshot's Error field.
func (s *service) fetchPage(ctx context.Context, pageURL string) *models.PageSnapshot {
	if err := s.rateLimiter.Wait(ctx, pageURL); err != nil {
		return &models.PageSnapshot{URL: pageURL, Error: err.Error(), FetchedAt: time.Now()}
	}

	var snapshot *models.PageSnapshot
	_, err := s.retry.ExecuteWithRetry(ctx, s.logger, func() (int, error) {
		snap, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return 0, err
		}
		snapshot = snap
		return snap.StatusCode, nil
	})

	if err != nil {
		return &models.PageSnapshot{URL: pageURL, Error: err.Error(), FetchedAt: time.Now()}
	}
	if snapshot == nil {
		return &models.PageSnapshot{URL: pageURL, Error: "no response", FetchedAt: time.Now()}
	}
	return snapshot
}
