// -----------------------------------------------------------------------
// Reducer - folds the twelve module results into the final report
// -----------------------------------------------------------------------

package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/ternarybob/percipio/internal/prompts"
)

// minCompletedModules is the coverage floor below which no overall verdict
// is defensible.
const minCompletedModules = 6

// topActionCount limits how many immediate actions the executive summary
// calls out.
const topActionCount = 5

// Reducer aggregates module results into one FinalReport.
type Reducer struct {
	logger arbor.ILogger
}

func NewReducer(logger arbor.ILogger) *Reducer {
	return &Reducer{logger: logger}
}

// Reduce builds the final report from the crawl outcome and the settled
// module results. Returns ErrInsufficientCoverage when fewer than six
// modules completed.
func (r *Reducer) Reduce(job *models.AuditJob, crawl *models.CrawlResult, moduleResults []*models.ModuleResult) (*models.FinalReport, error) {
	completed := make([]*models.ModuleResult, 0, len(moduleResults))
	failed := 0
	for _, mr := range moduleResults {
		if mr.Status == models.ModuleStatusCompleted && mr.Result != nil {
			completed = append(completed, mr)
		} else {
			failed++
		}
	}

	if len(completed) < minCompletedModules {
		return nil, fmt.Errorf("%w: %d of %d modules completed",
			models.ErrInsufficientCoverage, len(completed), len(moduleResults))
	}

	sum := 0
	counters := models.ReportCounters{
		ModulesAnalyzed: len(completed),
		ModulesFailed:   failed,
	}
	expertAnalyses := make(map[string]*models.AnalysisResult, len(completed))
	hasFloorModule := false

	for _, mr := range completed {
		result := mr.Result
		sum += result.Summary.Score
		expertAnalyses[mr.ModuleName] = result

		counts := result.CountCriteria()
		counters.CriteriaPassed += counts.Passed
		counters.CriteriaWarnings += counts.Warnings + counts.Partial
		counters.CriteriaFailed += counts.Failed

		if result.Summary.ComplianceLevel == models.ComplianceNone || result.Summary.Score < 20 {
			hasFloorModule = true
		}
	}

	overallScore := float64(sum) / float64(len(completed))
	conformance := conformanceLevel(overallScore)

	// A module in free fall forecloses any claim above PARTIAL no matter
	// what the mean says
	if hasFloorModule && conformanceRank(conformance) > conformanceRank(models.CompliancePartial) {
		conformance = models.CompliancePartial
	}

	recommendations := mergeRecommendations(completed)

	report := &models.FinalReport{
		ID:    common.NewReportID(),
		JobID: job.ID,
		TechnicalAnalysis: models.TechnicalAnalysis{
			URL:          job.URL,
			PagesCrawled: len(crawl.Pages) - crawl.PagesFailed,
			PagesFailed:  crawl.PagesFailed,
			OverallScore: overallScore,
			Counters:     counters,
			AuditedAt:    time.Now(),
		},
		ExpertAnalyses:   expertAnalyses,
		Recommendations:  recommendations,
		ConformanceLevel: conformance,
		CreatedAt:        time.Now(),
	}
	report.ExecutiveSummary = buildExecutiveSummary(report)

	r.logger.Info().
		Str("job_id", job.ID).
		Float64("overall_score", overallScore).
		Str("conformance", conformance).
		Int("modules_completed", len(completed)).
		Int("modules_failed", failed).
		Msg("Report reduced")

	return report, nil
}

func conformanceLevel(score float64) string {
	switch {
	case score >= 98:
		return models.ComplianceAAA
	case score >= 80:
		return models.ComplianceAA
	case score >= 65:
		return models.ComplianceA
	case score >= 40:
		return models.CompliancePartial
	case score >= 20:
		return models.ConformancePoor
	default:
		return models.ConformanceCritical
	}
}

func conformanceRank(level string) int {
	switch level {
	case models.ComplianceAAA:
		return 5
	case models.ComplianceAA:
		return 4
	case models.ComplianceA:
		return 3
	case models.CompliancePartial:
		return 2
	case models.ConformancePoor:
		return 1
	default:
		return 0
	}
}

// mergeRecommendations folds every module's priority actions into one set,
// deduplicated by title. A title seen in several buckets keeps its most
// urgent placement.
func mergeRecommendations(completed []*models.ModuleResult) models.PriorityActions {
	const (
		bucketImmediate = iota
		bucketShortTerm
		bucketLongTerm
	)

	type placed struct {
		action models.PriorityAction
		bucket int
		order  int
	}

	seen := make(map[string]*placed)
	var sequence []*placed
	next := 0

	add := func(action models.PriorityAction, bucket int) {
		key := strings.ToLower(strings.TrimSpace(action.Title))
		if key == "" {
			return
		}
		if existing, ok := seen[key]; ok {
			if bucket < existing.bucket {
				existing.bucket = bucket
			}
			existing.action.AffectedCriteria = mergeCriteria(existing.action.AffectedCriteria, action.AffectedCriteria)
			return
		}
		p := &placed{action: action, bucket: bucket, order: next}
		next++
		seen[key] = p
		sequence = append(sequence, p)
	}

	for _, mr := range completed {
		actions := mr.Result.PriorityActions
		for _, a := range actions.Immediate {
			add(a, bucketImmediate)
		}
		for _, a := range actions.ShortTerm {
			add(a, bucketShortTerm)
		}
		for _, a := range actions.LongTerm {
			add(a, bucketLongTerm)
		}
	}

	var merged models.PriorityActions
	for _, p := range sequence {
		switch p.bucket {
		case bucketImmediate:
			merged.Immediate = append(merged.Immediate, p.action)
		case bucketShortTerm:
			merged.ShortTerm = append(merged.ShortTerm, p.action)
		default:
			merged.LongTerm = append(merged.LongTerm, p.action)
		}
	}
	return merged
}

func mergeCriteria(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := a
	for _, c := range a {
		seen[c] = true
	}
	for _, c := range b {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func buildExecutiveSummary(report *models.FinalReport) string {
	ta := report.TechnicalAnalysis
	var b strings.Builder

	fmt.Fprintf(&b, "Accessibility audit of %s, completed %s.\n",
		ta.URL, ta.AuditedAt.Format("2 January 2006"))
	fmt.Fprintf(&b, "Overall conformance: %s (score %.1f/100) across %d analysis modules (%d pages reviewed).\n",
		report.ConformanceLevel, ta.OverallScore, ta.Counters.ModulesAnalyzed, ta.PagesCrawled)
	fmt.Fprintf(&b, "Criteria: %d passed, %d with warnings, %d failed.",
		ta.Counters.CriteriaPassed, ta.Counters.CriteriaWarnings, ta.Counters.CriteriaFailed)
	if ta.Counters.ModulesFailed > 0 {
		fmt.Fprintf(&b, " %d modules could not be evaluated.", ta.Counters.ModulesFailed)
	}

	weakest := weakestModules(report.ExpertAnalyses, 3)
	if len(weakest) > 0 {
		fmt.Fprintf(&b, "\nWeakest areas: %s.", strings.Join(weakest, ", "))
	}

	if len(report.Recommendations.Immediate) > 0 {
		b.WriteString("\nImmediate actions:\n")
		for i, action := range report.Recommendations.Immediate {
			if i == topActionCount {
				break
			}
			fmt.Fprintf(&b, "  %d. %s\n", i+1, action.Title)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// weakestModules returns the titles of the n lowest-scoring modules, walked
// in the canonical axis order for deterministic output.
func weakestModules(analyses map[string]*models.AnalysisResult, n int) []string {
	type scored struct {
		title string
		score int
	}
	var all []scored
	for _, axis := range prompts.Axes() {
		if result, ok := analyses[axis.Key]; ok {
			all = append(all, scored{title: axis.Title, score: result.Summary.Score})
		}
	}
	// Stable sort keeps axis order among ties
	sort.SliceStable(all, func(i, j int) bool { return all[i].score < all[j].score })

	var out []string
	for i, s := range all {
		if i == n || s.score >= 80 {
			break
		}
		out = append(out, s.title)
	}
	return out
}
