package crawler

import (
	"context"

	"github.com/ternarybob/percipio/internal/models"
)

// CrawlRequest describes one bounded crawl.
type CrawlRequest struct {
	RootURL  string
	MaxPages int
}

// Service crawls a site breadth-first from the root, same-origin only,
// capped at MaxPages.
type Service interface {
	Crawl(ctx context.Context, req *CrawlRequest) (*models.CrawlResult, error)
}

// Fetcher retrieves one page. Implementations exist for plain HTTP and for
// JavaScript-rendered fetching via headless Chrome.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*models.PageSnapshot, error)
}
