// -----------------------------------------------------------------------
// Module Result - one axis analysis: parsed schema plus the raw model output
// -----------------------------------------------------------------------

package models

import "time"

// ModuleStatus represents the state of a single axis analysis module.
type ModuleStatus string

const (
	ModuleStatusPending   ModuleStatus = "pending"
	ModuleStatusRunning   ModuleStatus = "running"
	ModuleStatusCompleted ModuleStatus = "completed"
	ModuleStatusFailed    ModuleStatus = "failed"
)

// Criterion evaluation statuses as mandated by the prompt templates.
const (
	CriterionPassed  = "PASSED"
	CriterionPartial = "PARTIAL"
	CriterionWarning = "WARNING"
	CriterionFailed  = "FAILED"
)

// Module compliance levels as reported per axis by the model.
const (
	ComplianceAAA     = "AAA"
	ComplianceAAPlus  = "AA+"
	ComplianceAA      = "AA"
	ComplianceAPlus   = "A+"
	ComplianceA       = "A"
	CompliancePartial = "PARTIAL"
	ComplianceNone    = "NONE"
)

// Overall conformance levels derived by the reducer from the aggregate score.
const (
	ConformancePoor     = "POOR"
	ConformanceCritical = "CRITICAL"
)

// AnalysisSummary is the mandatory summary block of a module result.
type AnalysisSummary struct {
	Score             int    `json:"score"`
	ComplianceLevel   string `json:"compliance_level"`
	OverallAssessment string `json:"overall_assessment"`
}

// CriterionEvaluation is one success-criterion verdict inside a module result.
type CriterionEvaluation struct {
	CriterionID    string   `json:"criterion_id"`
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	Finding        string   `json:"finding,omitempty"`
	Impact         string   `json:"impact,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Examples       []string `json:"examples,omitempty"`
	Severity       string   `json:"severity,omitempty"`
}

// PriorityAction is one remediation item in a priority bucket.
type PriorityAction struct {
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Effort           string   `json:"effort,omitempty"`
	AffectedCriteria []string `json:"affected_criteria,omitempty"`
}

// PriorityActions groups remediation items by urgency. All buckets are
// optional in model output.
type PriorityActions struct {
	Immediate []PriorityAction `json:"immediate,omitempty"`
	ShortTerm []PriorityAction `json:"short_term,omitempty"`
	LongTerm  []PriorityAction `json:"long_term,omitempty"`
}

// AnalysisResult is the canonical parsed schema of one module's LLM output.
// Model responses carrying the legacy German keys (gesamtbewertung,
// detailbewertung, priorisierte_massnahmen) are canonicalized into this
// structure at the parse boundary; the two schemas are equivalent.
type AnalysisResult struct {
	Summary            AnalysisSummary       `json:"summary"`
	CriteriaEvaluation []CriterionEvaluation `json:"criteria_evaluation"`
	PriorityActions    PriorityActions       `json:"priority_actions,omitempty"`
}

// TokenUsage records token counts as reported by the LLM provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModuleResult is the durable row for one (job, axis) analysis. Rows are
// created lazily on first observation, updated in place, never deleted, and
// unique on (JobID, ModuleName).
type ModuleResult struct {
	ID          string          `json:"id"`
	JobID       string          `json:"job_id"`
	ModuleName  string          `json:"module_name"` // axis key, e.g. "1_1_text_alternatives"
	Status      ModuleStatus    `json:"status"`
	Result      *AnalysisResult `json:"result,omitempty"`
	RawOutput   string          `json:"raw_output,omitempty"` // retained for audit even on failure
	TokenUsage  TokenUsage      `json:"token_usage"`
	Error       string          `json:"error,omitempty"`
	SubmitterID string          `json:"user_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// CriteriaCounts tallies criterion statuses across a result.
type CriteriaCounts struct {
	Passed   int `json:"passed"`
	Partial  int `json:"partial"`
	Warnings int `json:"warnings"`
	Failed   int `json:"failed"`
}

// CountCriteria tallies the per-criterion statuses of a parsed result.
func (r *AnalysisResult) CountCriteria() CriteriaCounts {
	var c CriteriaCounts
	for _, ce := range r.CriteriaEvaluation {
		switch ce.Status {
		case CriterionPassed:
			c.Passed++
		case CriterionPartial:
			c.Partial++
		case CriterionWarning:
			c.Warnings++
		case CriterionFailed:
			c.Failed++
		}
	}
	return c
}
