// -----------------------------------------------------------------------
// Automated Checker - deterministic rule-based checks, no LLM involved
// -----------------------------------------------------------------------

package checker

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/models"
)

// Severity of a finding.
const (
	SeverityViolation = "violation"
	SeverityWarning   = "warning"
	SeverityPass      = "pass"
)

// Finding is one rule outcome on one page.
type Finding struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Page     string `json:"page"`
	Message  string `json:"message"`
	Count    int    `json:"count,omitempty"`
}

// CheckResult is the structured output consumed as extra context by every
// analysis module and as a safety floor by the reducer.
type CheckResult struct {
	Violations []Finding `json:"violations"`
	Warnings   []Finding `json:"warnings"`
	Passes     []Finding `json:"passes"`
}

// Totals returns (violations, warnings, passes) counts.
func (r *CheckResult) Totals() (int, int, int) {
	return len(r.Violations), len(r.Warnings), len(r.Passes)
}

// rule is one deterministic check over a parsed page.
type rule struct {
	name  string
	check func(page *models.PageSnapshot, doc *goquery.Document) []Finding
}

// Checker runs the rule set over every fetched page.
type Checker struct {
	rules  []rule
	logger arbor.ILogger
}

// NewChecker creates a checker with the default rule set
func NewChecker(logger arbor.ILogger) *Checker {
	c := &Checker{logger: logger}
	c.rules = []rule{
		{name: "html-lang", check: checkHTMLLang},
		{name: "duplicate-ids", check: checkDuplicateIDs},
		{name: "img-empty-src", check: checkEmptyImageSrc},
		{name: "img-missing-alt", check: checkMissingAlt},
		{name: "form-labels", check: checkFormLabels},
		{name: "heading-skips", check: checkHeadingSkips},
		{name: "page-title", check: checkPageTitle},
	}
	return c
}

// Check runs every rule against every successfully fetched page.
func (c *Checker) Check(crawl *models.CrawlResult) *CheckResult {
	result := &CheckResult{}

	for _, page := range crawl.SucceededPages() {
		if page.HTML == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
		if err != nil {
			c.logger.Warn().Err(err).Str("url", page.URL).Msg("Skipping unparseable page in automated checks")
			continue
		}
		p := page
		for _, r := range c.rules {
			for _, f := range r.check(&p, doc) {
				switch f.Severity {
				case SeverityViolation:
					result.Violations = append(result.Violations, f)
				case SeverityWarning:
					result.Warnings = append(result.Warnings, f)
				default:
					result.Passes = append(result.Passes, f)
				}
			}
		}
	}

	v, w, p := result.Totals()
	c.logger.Info().
		Int("violations", v).
		Int("warnings", w).
		Int("passes", p).
		Msg("Automated checks completed")

	return result
}

func checkHTMLLang(page *models.PageSnapshot, doc *goquery.Document) []Finding {
	lang, _ := doc.Find("html").First().Attr("lang")
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return []Finding{{
			Rule: "html-lang", Severity: SeverityViolation, Page: page.URL,
			Message: "document has no lang attribute on the html element",
		}}
	}
	return []Finding{{
		Rule: "html-lang", Severity: SeverityPass, Page: page.URL,
		Message: fmt.Sprintf("document language declared as %q", lang),
	}}
}

func checkDuplicateIDs(page *models.PageSnapshot, doc *goquery.Document) []Finding {
	seen := make(map[string]int)
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok && id != "" {
			seen[id]++
		}
	})

	duplicates := 0
	for _, n := range seen {
		if n > 1 {
			duplicates++
		}
	}
	if duplicates > 0 {
		return []Finding{{
			Rule: "duplicate-ids", Severity: SeverityViolation, Page: page.URL,
			Message: fmt.Sprintf("%d id value(s) used more than once", duplicates),
			Count:   duplicates,
		}}
	}
	return []Finding{{
		Rule: "duplicate-ids", Severity: SeverityPass, Page: page.URL,
		Message: "all id values unique",
	}}
}

func checkEmptyImageSrc(page *models.PageSnapshot, doc *goquery.Document) []Finding {
	empty := 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			empty++
		}
	})
	if empty > 0 {
		return []Finding{{
			Rule: "img-empty-src", Severity: SeverityViolation, Page: page.URL,
			Message: fmt.Sprintf("%d image(s) with missing or empty src", empty),
			Count:   empty,
		}}
	}
	return nil
}

func checkMissingAlt(page *models.PageSnapshot, doc *goquery.Document) []Finding {
	missing := 0
	total := 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		total++
		if _, ok := s.Attr("alt"); !ok {
			missing++
		}
	})
	if total == 0 {
		return nil
	}
	if missing > 0 {
		return []Finding{{
			Rule: "img-missing-alt", Severity: SeverityViolation, Page: page.URL,
			Message: fmt.Sprintf("%d of %d image(s) without alt attribute", missing, total),
			Count:   missing,
		}}
	}
	return []Finding{{
		Rule: "img-missing-alt", Severity: SeverityPass, Page: page.URL,
		Message: fmt.Sprintf("all %d image(s) carry an alt attribute", total),
	}}
}

func checkFormLabels(page *models.PageSnapshot, doc *goquery.Document) []Finding {
	labeledIDs := make(map[string]bool)
	doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("for"); ok {
			labeledIDs[id] = true
		}
	})

	unlabeled := 0
	total := 0
	doc.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		t, _ := s.Attr("type")
		if t == "hidden" || t == "submit" || t == "button" || t == "image" {
			return
		}
		total++
		id, _ := s.Attr("id")
		if id != "" && labeledIDs[id] {
			return
		}
		if s.ParentsFiltered("label").Length() > 0 {
			return
		}
		if aria, ok := s.Attr("aria-label"); ok && strings.TrimSpace(aria) != "" {
			return
		}
		if _, ok := s.Attr("aria-labelledby"); ok {
			return
		}
		unlabeled++
	})

	if total == 0 {
		return nil
	}
	if unlabeled > 0 {
		return []Finding{{
			Rule: "form-labels", Severity: SeverityViolation, Page: page.URL,
			Message: fmt.Sprintf("%d of %d form field(s) without an accessible label", unlabeled, total),
			Count:   unlabeled,
		}}
	}
	return []Finding{{
		Rule: "form-labels", Severity: SeverityPass, Page: page.URL,
		Message: fmt.Sprintf("all %d form field(s) labeled", total),
	}}
}

func checkHeadingSkips(page *models.PageSnapshot, doc *goquery.Document) []Finding {
	var levels []int
	doc.Find("h1,h2,h3,h4,h5,h6").Each(func(_ int, s *goquery.Selection) {
		levels = append(levels, int(goquery.NodeName(s)[1]-'0'))
	})
	if len(levels) == 0 {
		return []Finding{{
			Rule: "heading-skips", Severity: SeverityWarning, Page: page.URL,
			Message: "page has no headings",
		}}
	}

	skips := 0
	prev := levels[0]
	for _, l := range levels[1:] {
		if l > prev+1 {
			skips++
		}
		prev = l
	}
	if levels[0] > 1 {
		skips++
	}
	if skips > 0 {
		return []Finding{{
			Rule: "heading-skips", Severity: SeverityWarning, Page: page.URL,
			Message: fmt.Sprintf("%d heading level skip(s) in document order", skips),
			Count:   skips,
		}}
	}
	return []Finding{{
		Rule: "heading-skips", Severity: SeverityPass, Page: page.URL,
		Message: "heading hierarchy is sequential",
	}}
}

func checkPageTitle(page *models.PageSnapshot, doc *goquery.Document) []Finding {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return []Finding{{
			Rule: "page-title", Severity: SeverityViolation, Page: page.URL,
			Message: "page has no title element",
		}}
	}
	return []Finding{{
		Rule: "page-title", Severity: SeverityPass, Page: page.URL,
		Message: fmt.Sprintf("page titled %q", title),
	}}
}
