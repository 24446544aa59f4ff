package models

import "time"

// ReportCounters are the headline counts summed across completed modules.
type ReportCounters struct {
	ModulesAnalyzed  int `json:"modules_analyzed"`
	ModulesFailed    int `json:"modules_failed"`
	CriteriaPassed   int `json:"criteria_passed"`
	CriteriaWarnings int `json:"criteria_warnings"`
	CriteriaFailed   int `json:"criteria_failed"`
}

// TechnicalAnalysis is the reducer's aggregate view over the crawl and the
// completed modules.
type TechnicalAnalysis struct {
	URL          string         `json:"url"`
	PagesCrawled int            `json:"pages_crawled"`
	PagesFailed  int            `json:"pages_failed"`
	OverallScore float64        `json:"overall_score"`
	Counters     ReportCounters `json:"counters"`
	AuditedAt    time.Time      `json:"audited_at"`
}

// FinalReport is the single aggregated artifact of a completed job, unique
// on JobID.
type FinalReport struct {
	ID                string                     `json:"id"`
	JobID             string                     `json:"job_id"`
	TechnicalAnalysis TechnicalAnalysis          `json:"technical_analysis"`
	ExpertAnalyses    map[string]*AnalysisResult `json:"expert_analyses"` // axis key -> parsed result
	ExecutiveSummary  string                     `json:"executive_summary"`
	Recommendations   PriorityActions            `json:"recommendations"`
	ConformanceLevel  string                     `json:"conformance_level"`
	// Certification is reserved for the downstream certification workflow;
	// the core never populates it.
	Certification map[string]interface{} `json:"certification,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}
