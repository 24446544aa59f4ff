package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
)

// LinkExtractor discovers same-origin links from crawled pages
type LinkExtractor struct {
	logger arbor.ILogger
}

// NewLinkExtractor creates a new link extractor
func NewLinkExtractor(logger arbor.ILogger) *LinkExtractor {
	return &LinkExtractor{
		logger: logger,
	}
}

// ExtractSameOriginLinks parses the page HTML and returns the canonical forms
// of anchor targets sharing the source page's origin. Order follows document
// order; duplicates are removed.
func (le *LinkExtractor) ExtractSameOriginLinks(html string, sourceURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for link extraction: %w", err)
	}

	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source URL %q: %w", sourceURL, err)
	}

	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}

		resolved := common.ResolveURL(href, baseURL)
		if resolved == "" {
			return
		}
		if !common.SameOrigin(resolved, sourceURL) {
			return
		}

		canonical, err := common.CanonicalURL(resolved)
		if err != nil {
			return
		}

		if !seen[canonical] {
			seen[canonical] = true
			links = append(links, canonical)
		}
	})

	le.logger.Debug().
		Str("source_url", sourceURL).
		Int("links_found", len(links)).
		Msg("Same-origin links extracted")

	return links, nil
}
