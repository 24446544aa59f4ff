// -----------------------------------------------------------------------
// Orchestrator - runs the audit pipeline for one job
// -----------------------------------------------------------------------

package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/ternarybob/percipio/internal/services/checker"
	"github.com/ternarybob/percipio/internal/services/crawler"
	"github.com/ternarybob/percipio/internal/services/snapshot"
)

// Pipeline phase names surfaced on the job row.
const (
	PhaseCrawling   = "crawling"
	PhaseExtracting = "extracting"
	PhaseAnalyzing  = "analyzing"
	PhaseReducing   = "reducing"
	PhasePersisting = "persisting"
)

// Progress band boundaries per phase. Module completions interpolate
// linearly inside their band.
const (
	progressCrawlStart   = 5
	progressChecksStart  = 10
	progressModulesStart = 20
	progressReduceStart  = 85
	progressPersistStart = 95
)

// Orchestrator drives one audit end to end: crawl, snapshot extraction,
// automated checks, the module fan-out, reduction, persistence. It owns the
// job deadline; terminal job transitions belong to the audit service above.
type Orchestrator struct {
	crawler    crawler.Service
	extractor  *snapshot.Extractor
	checker    *checker.Checker
	dispatcher *Dispatcher
	reducer    *Reducer
	storage    interfaces.StorageManager
	config     *common.Config
	logger     arbor.ILogger
}

func NewOrchestrator(
	crawlerService crawler.Service,
	extractor *snapshot.Extractor,
	check *checker.Checker,
	dispatcher *Dispatcher,
	reducer *Reducer,
	storage interfaces.StorageManager,
	config *common.Config,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		crawler:    crawlerService,
		extractor:  extractor,
		checker:    check,
		dispatcher: dispatcher,
		reducer:    reducer,
		storage:    storage,
		config:     config,
		logger:     logger,
	}
}

// Run executes the pipeline for a job already in the running state and
// returns the persisted report. Deadline expiry maps to ErrDeadline and
// caller cancellation to ErrCancelled.
func (o *Orchestrator) Run(ctx context.Context, job *models.AuditJob) (*models.FinalReport, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if o.config.Audit.JobDeadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.config.Audit.JobDeadline.Std())
		defer cancel()
	}

	tracker := NewProgressTracker(job, o.storage.JobStorage(), o.logger)
	defer tracker.Close()

	tracker.Update(progressCrawlStart, PhaseCrawling)
	crawl, err := o.crawler.Crawl(runCtx, &crawler.CrawlRequest{
		RootURL:  job.URL,
		MaxPages: job.MaxPages,
	})
	if err != nil {
		return nil, o.mapPipelineError(ctx, runCtx, err)
	}

	tracker.Update(progressChecksStart, PhaseExtracting)
	snap, err := o.extractor.Extract(crawl)
	if err != nil {
		return nil, o.mapPipelineError(ctx, runCtx, err)
	}
	checks := o.checker.Check(crawl)

	tracker.Update(progressModulesStart, PhaseAnalyzing)
	moduleResults, err := o.dispatcher.Dispatch(runCtx, &DispatchInput{
		Job:      job,
		Snapshot: snap,
		Checks:   checks,
	}, func(settled, total int) {
		span := progressReduceStart - progressModulesStart
		tracker.Update(progressModulesStart+span*settled/total, PhaseAnalyzing)
	})
	if err != nil {
		return nil, o.mapPipelineError(ctx, runCtx, err)
	}

	tracker.Update(progressReduceStart, PhaseReducing)
	report, err := o.reducer.Reduce(job, crawl, moduleResults)
	if err != nil {
		return nil, o.mapPipelineError(ctx, runCtx, err)
	}

	tracker.Update(progressPersistStart, PhasePersisting)
	if err := o.storage.ReportStorage().UpsertFinalReport(runCtx, report); err != nil {
		return nil, o.mapPipelineError(ctx, runCtx, fmt.Errorf("persist report: %w", err))
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("report_id", report.ID).
		Str("conformance", report.ConformanceLevel).
		Msg("Audit pipeline finished")

	return report, nil
}

// mapPipelineError distinguishes the job deadline firing from the caller
// cancelling. Non-context errors pass through untouched.
func (o *Orchestrator) mapPipelineError(parent, runCtx context.Context, err error) error {
	if parent.Err() != nil && errors.Is(err, context.Canceled) {
		return models.ErrCancelled
	}
	if runCtx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: audit exceeded %s", models.ErrDeadline, o.config.Audit.JobDeadline)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return models.ErrCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: audit exceeded %s", models.ErrDeadline, o.config.Audit.JobDeadline)
	}
	return err
}
