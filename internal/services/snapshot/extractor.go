// -----------------------------------------------------------------------
// Snapshot Extractor - per-axis projections over the crawled DOM set
// -----------------------------------------------------------------------

package snapshot

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/ternarybob/percipio/internal/prompts"
)

// Slicer projects the parsed page set into one axis's JSON-serializable slice.
type Slicer func(pages []PageDoc) any

// Extractor parses crawled pages once and derives the base snapshot plus one
// slice per registered axis. New axes register a slicer without touching the
// orchestration code.
type Extractor struct {
	slicers map[string]Slicer
	logger  arbor.ILogger
}

// NewExtractor creates an extractor with all twelve axis slicers registered
func NewExtractor(logger arbor.ILogger) *Extractor {
	e := &Extractor{
		slicers: make(map[string]Slicer),
		logger:  logger,
	}
	e.registerDefaultSlicers()
	return e
}

// Register binds a slicer to an axis key, replacing any existing binding.
func (e *Extractor) Register(axisKey string, s Slicer) {
	e.slicers[axisKey] = s
}

// Extract parses every successfully fetched page and produces the base
// snapshot and all registered slices.
func (e *Extractor) Extract(result *models.CrawlResult) (*Snapshot, error) {
	pages, err := e.parsePages(result)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no parseable pages in crawl result")
	}

	snap := &Snapshot{
		Base:   buildBaseSnapshot(result.RootURL, pages),
		Slices: make(map[string]any, len(e.slicers)),
	}

	for _, axis := range prompts.ModuleNames() {
		slicer, ok := e.slicers[axis]
		if !ok {
			continue
		}
		snap.Slices[axis] = slicer(pages)
	}

	e.logger.Info().
		Int("pages", len(pages)).
		Int("slices", len(snap.Slices)).
		Msg("Snapshot extracted")

	return snap, nil
}

func (e *Extractor) parsePages(result *models.CrawlResult) ([]PageDoc, error) {
	var pages []PageDoc
	for _, p := range result.SucceededPages() {
		if p.HTML == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
		if err != nil {
			e.logger.Warn().Err(err).Str("url", p.URL).Msg("Failed to parse page HTML")
			continue
		}
		pages = append(pages, PageDoc{
			URL:        p.URL,
			Title:      p.Title,
			Lang:       p.Lang,
			StatusCode: p.StatusCode,
			Doc:        doc,
		})
	}
	return pages, nil
}

func buildBaseSnapshot(rootURL string, pages []PageDoc) *BaseSnapshot {
	base := &BaseSnapshot{
		RootURL:   rootURL,
		PageCount: len(pages),
	}
	for _, p := range pages {
		stats := PageStats{
			URL:       p.URL,
			Title:     p.Title,
			Lang:      p.Lang,
			Status:    p.StatusCode,
			Headings:  p.Doc.Find("h1,h2,h3,h4,h5,h6").Length(),
			Images:    p.Doc.Find("img").Length(),
			Links:     p.Doc.Find("a[href]").Length(),
			Forms:     p.Doc.Find("form").Length(),
			Landmarks: p.Doc.Find("main,nav,header,footer,aside,[role=main],[role=navigation],[role=banner],[role=contentinfo]").Length(),
		}
		base.TotalLinks += stats.Links
		base.TotalForms += stats.Forms
		base.Pages = append(base.Pages, stats)
	}
	return base
}

// truncate trims surrounding-context strings so slices stay prompt-sized.
func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
