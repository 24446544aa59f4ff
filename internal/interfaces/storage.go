package interfaces

import (
	"context"

	"github.com/ternarybob/percipio/internal/models"
)

// JobListOptions filters and pages job listings
type JobListOptions struct {
	Status      models.JobStatus
	SubmitterID string
	Limit       int
	Offset      int
}

// JobStorage persists audit job rows
type JobStorage interface {
	// SaveJob upserts a job row keyed by ID. Retried writes with identical
	// content are idempotent.
	SaveJob(ctx context.Context, job *models.AuditJob) error

	// GetJob loads a job by ID, returning models.ErrNotFound when absent.
	GetJob(ctx context.Context, jobID string) (*models.AuditJob, error)

	// ListJobs returns jobs newest-first according to opts.
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.AuditJob, error)

	// GetJobsByStatus returns all jobs in the given status.
	GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.AuditJob, error)

	// CountJobs returns the number of jobs matching opts.
	CountJobs(ctx context.Context, opts *JobListOptions) (int, error)
}

// ResultStorage persists per-axis module results, unique on (job, module)
type ResultStorage interface {
	// UpsertModuleResult writes a module result keyed by (JobID, ModuleName).
	// Re-invoking with identical content yields the same final row.
	UpsertModuleResult(ctx context.Context, result *models.ModuleResult) error

	// GetModuleResult loads one result, returning models.ErrNotFound when absent.
	GetModuleResult(ctx context.Context, jobID, moduleName string) (*models.ModuleResult, error)

	// ListModuleResults returns all results for a job in completion order.
	ListModuleResults(ctx context.Context, jobID string) ([]*models.ModuleResult, error)
}

// ReportStorage persists final reports, unique on job
type ReportStorage interface {
	// UpsertFinalReport writes the report keyed by JobID.
	UpsertFinalReport(ctx context.Context, report *models.FinalReport) error

	// GetFinalReport loads the report for a job, returning models.ErrNotFound
	// when absent.
	GetFinalReport(ctx context.Context, jobID string) (*models.FinalReport, error)
}

// StorageManager bundles the storage interfaces behind one lifecycle
type StorageManager interface {
	JobStorage() JobStorage
	ResultStorage() ResultStorage
	ReportStorage() ReportStorage
	Close() error
}
