package models

import "time"

// PageSnapshot is one crawled page: final URL after redirects, response
// metadata, and the raw serialized DOM. Per-page fetch failures are recorded
// in Error and do not abort the crawl unless the page is the root.
type PageSnapshot struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Title      string        `json:"title,omitempty"`
	Lang       string        `json:"lang,omitempty"`
	HTML       string        `json:"html,omitempty"`
	FetchTime  time.Duration `json:"fetch_time"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Error      string        `json:"error,omitempty"`
}

// CrawlResult is the ordered output of a bounded crawl. Pages[0] is always
// the root (the requested URL after redirects); no URL appears twice.
type CrawlResult struct {
	RootURL     string         `json:"root_url"`
	Pages       []PageSnapshot `json:"pages"`
	PagesFailed int            `json:"pages_failed"`
	Elapsed     time.Duration  `json:"elapsed"`
}

// SucceededPages returns the snapshots that fetched without error.
func (c *CrawlResult) SucceededPages() []PageSnapshot {
	out := make([]PageSnapshot, 0, len(c.Pages))
	for _, p := range c.Pages {
		if p.Error == "" {
			out = append(out, p)
		}
	}
	return out
}
