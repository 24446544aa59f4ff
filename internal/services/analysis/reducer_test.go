package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/ternarybob/percipio/internal/prompts"
)

func completedResult(module string, score int, level string) *models.ModuleResult {
	now := time.Now()
	return &models.ModuleResult{
		ID:         "res_" + module,
		JobID:      "job_test",
		ModuleName: module,
		Status:     models.ModuleStatusCompleted,
		Result: &models.AnalysisResult{
			Summary: models.AnalysisSummary{
				Score:             score,
				ComplianceLevel:   level,
				OverallAssessment: "assessment",
			},
			CriteriaEvaluation: []models.CriterionEvaluation{
				{CriterionID: "1.1.1", Status: models.CriterionPassed},
				{CriterionID: "1.1.2", Status: models.CriterionFailed},
			},
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}
}

func failedResult(module string) *models.ModuleResult {
	now := time.Now()
	return &models.ModuleResult{
		ID:          "res_" + module,
		JobID:       "job_test",
		ModuleName:  module,
		Status:      models.ModuleStatusFailed,
		Error:       "upstream 503",
		CreatedAt:   now,
		CompletedAt: &now,
	}
}

func fullModuleSet(score int, level string) []*models.ModuleResult {
	var out []*models.ModuleResult
	for _, name := range prompts.ModuleNames() {
		out = append(out, completedResult(name, score, level))
	}
	return out
}

func TestReducer_MeanScoreAndConformance(t *testing.T) {
	r := NewReducer(arbor.NewLogger())
	job := testJob()

	report, err := r.Reduce(job, testCrawlResult(), fullModuleSet(85, "AA"))
	require.NoError(t, err)

	assert.InDelta(t, 85.0, report.TechnicalAnalysis.OverallScore, 0.01)
	assert.Equal(t, models.ComplianceAA, report.ConformanceLevel)
	assert.Equal(t, job.ID, report.JobID)
	assert.Len(t, report.ExpertAnalyses, 12)
}

func TestReducer_ConformanceThresholds(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{99, models.ComplianceAAA},
		{98, models.ComplianceAAA},
		{97, models.ComplianceAA},
		{80, models.ComplianceAA},
		{79, models.ComplianceA},
		{65, models.ComplianceA},
		{64, models.CompliancePartial},
		{40, models.CompliancePartial},
		{39, models.ConformancePoor},
		{20, models.ConformancePoor},
		{19, models.ConformanceCritical},
		{0, models.ConformanceCritical},
	}

	r := NewReducer(arbor.NewLogger())
	for _, tc := range cases {
		// Module levels chosen above NONE so no cap interferes
		report, err := r.Reduce(testJob(), testCrawlResult(), fullModuleSet(tc.score, "AA"))
		require.NoError(t, err)
		assert.Equal(t, tc.want, report.ConformanceLevel, "score %d", tc.score)
	}
}

func TestReducer_FailedModulesExcludedFromMean(t *testing.T) {
	results := fullModuleSet(90, "AA")[:9]
	results = append(results, failedResult("3_2_predictable"), failedResult("3_3_input_assistance"), failedResult("4_1_compatible"))

	r := NewReducer(arbor.NewLogger())
	report, err := r.Reduce(testJob(), testCrawlResult(), results)
	require.NoError(t, err)

	assert.InDelta(t, 90.0, report.TechnicalAnalysis.OverallScore, 0.01)
	assert.Equal(t, 9, report.TechnicalAnalysis.Counters.ModulesAnalyzed)
	assert.Equal(t, 3, report.TechnicalAnalysis.Counters.ModulesFailed)
	assert.Len(t, report.ExpertAnalyses, 9)
}

func TestReducer_InsufficientCoverage(t *testing.T) {
	var results []*models.ModuleResult
	names := prompts.ModuleNames()
	for i, name := range names {
		if i < 5 {
			results = append(results, completedResult(name, 80, "AA"))
		} else {
			results = append(results, failedResult(name))
		}
	}

	r := NewReducer(arbor.NewLogger())
	_, err := r.Reduce(testJob(), testCrawlResult(), results)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientCoverage)
}

func TestReducer_SixCompletedIsEnough(t *testing.T) {
	var results []*models.ModuleResult
	for i, name := range prompts.ModuleNames() {
		if i < 6 {
			results = append(results, completedResult(name, 80, "AA"))
		} else {
			results = append(results, failedResult(name))
		}
	}

	r := NewReducer(arbor.NewLogger())
	report, err := r.Reduce(testJob(), testCrawlResult(), results)
	require.NoError(t, err)
	assert.Equal(t, 6, report.TechnicalAnalysis.Counters.ModulesAnalyzed)
}

func TestReducer_NoneModuleCapsConformance(t *testing.T) {
	results := fullModuleSet(95, "AA")
	// One collapsed module despite a high mean
	results[4] = completedResult("2_1_keyboard", 10, models.ComplianceNone)

	r := NewReducer(arbor.NewLogger())
	report, err := r.Reduce(testJob(), testCrawlResult(), results)
	require.NoError(t, err)

	assert.Greater(t, report.TechnicalAnalysis.OverallScore, 80.0)
	assert.Equal(t, models.CompliancePartial, report.ConformanceLevel)
}

func TestReducer_CapDoesNotRaiseLowConformance(t *testing.T) {
	results := fullModuleSet(15, models.ComplianceNone)

	r := NewReducer(arbor.NewLogger())
	report, err := r.Reduce(testJob(), testCrawlResult(), results)
	require.NoError(t, err)

	assert.Equal(t, models.ConformanceCritical, report.ConformanceLevel)
}

func TestReducer_CountersSummed(t *testing.T) {
	r := NewReducer(arbor.NewLogger())
	report, err := r.Reduce(testJob(), testCrawlResult(), fullModuleSet(80, "AA"))
	require.NoError(t, err)

	// Each module fixture carries one passed and one failed criterion
	assert.Equal(t, 12, report.TechnicalAnalysis.Counters.CriteriaPassed)
	assert.Equal(t, 12, report.TechnicalAnalysis.Counters.CriteriaFailed)
	assert.Equal(t, 0, report.TechnicalAnalysis.Counters.CriteriaWarnings)
}

func TestReducer_RecommendationsDedupedByTitle(t *testing.T) {
	results := fullModuleSet(80, "AA")
	results[0].Result.PriorityActions = models.PriorityActions{
		LongTerm: []models.PriorityAction{{Title: "Adopt a design system", AffectedCriteria: []string{"1.1.1"}}},
	}
	results[1].Result.PriorityActions = models.PriorityActions{
		Immediate: []models.PriorityAction{{Title: "adopt a design system", AffectedCriteria: []string{"1.2.2"}}},
	}
	results[2].Result.PriorityActions = models.PriorityActions{
		ShortTerm: []models.PriorityAction{{Title: "Label form fields"}},
	}

	r := NewReducer(arbor.NewLogger())
	report, err := r.Reduce(testJob(), testCrawlResult(), results)
	require.NoError(t, err)

	// Duplicate title keeps its most urgent bucket and merges criteria
	require.Len(t, report.Recommendations.Immediate, 1)
	assert.Equal(t, "Adopt a design system", report.Recommendations.Immediate[0].Title)
	assert.ElementsMatch(t, []string{"1.1.1", "1.2.2"}, report.Recommendations.Immediate[0].AffectedCriteria)
	assert.Empty(t, report.Recommendations.LongTerm)
	require.Len(t, report.Recommendations.ShortTerm, 1)
}

func TestReducer_ExecutiveSummary(t *testing.T) {
	results := fullModuleSet(85, "AA")
	results[0].Result.PriorityActions = models.PriorityActions{
		Immediate: []models.PriorityAction{
			{Title: "Fix missing alt text"},
			{Title: "Raise contrast"},
			{Title: "Add skip links"},
			{Title: "Label the search field"},
			{Title: "Caption the hero video"},
			{Title: "A sixth action that must not appear"},
		},
	}

	r := NewReducer(arbor.NewLogger())
	job := testJob()
	report, err := r.Reduce(job, testCrawlResult(), results)
	require.NoError(t, err)

	summary := report.ExecutiveSummary
	assert.Contains(t, summary, job.URL)
	assert.Contains(t, summary, models.ComplianceAA)
	assert.Contains(t, summary, "Fix missing alt text")
	assert.Contains(t, summary, "Caption the hero video")
	assert.NotContains(t, summary, "A sixth action")
}
