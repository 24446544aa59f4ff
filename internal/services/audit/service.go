// -----------------------------------------------------------------------
// Audit service - job registry, lifecycle transitions and the stale reaper
// -----------------------------------------------------------------------

package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
)

// Pipeline is the audit execution engine. Satisfied by analysis.Orchestrator.
type Pipeline interface {
	Run(ctx context.Context, job *models.AuditJob) (*models.FinalReport, error)
}

// CreateRequest describes a new audit submission.
type CreateRequest struct {
	URL              string
	Plan             models.PlanTier
	MaxPages         int // 0 means the plan cap
	SubmitterID      string
	PaymentSessionID string
}

// Results bundles everything persisted for one job.
type Results struct {
	Job           *models.AuditJob       `json:"job"`
	Report        *models.FinalReport    `json:"report,omitempty"`
	ModuleResults []*models.ModuleResult `json:"module_results"`
}

// Service owns the job lifecycle: creation, the live-job registry, terminal
// transitions, cancellation and the stale-job reaper. One pipeline goroutine
// runs per live job; the orchestrator below never touches terminal state.
type Service struct {
	storage  interfaces.StorageManager
	pipeline Pipeline
	config   *common.Config
	logger   arbor.ILogger
	cron     *cron.Cron

	mu   sync.Mutex
	live map[string]context.CancelFunc
	wg   sync.WaitGroup
}

func NewService(storage interfaces.StorageManager, pipeline Pipeline, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		pipeline: pipeline,
		config:   config,
		logger:   logger,
		cron:     cron.New(cron.WithSeconds()),
		live:     make(map[string]context.CancelFunc),
	}
}

// Start fails over jobs orphaned by a previous run and schedules the reaper.
func (s *Service) Start() error {
	if err := s.cleanupOrphanedJobs(); err != nil {
		s.logger.Warn().Err(err).Msg("Orphaned job cleanup failed")
	}

	schedule := s.config.Audit.ReaperSchedule
	if schedule == "" {
		schedule = "0 */5 * * * *"
	}
	if _, err := s.cron.AddFunc(schedule, s.reapStaleJobs); err != nil {
		return fmt.Errorf("failed to schedule stale job reaper: %w", err)
	}
	s.cron.Start()

	s.logger.Info().
		Str("schedule", schedule).
		Dur("stale_after", s.config.Audit.StaleAfter.Std()).
		Msg("Audit service started")
	return nil
}

// Stop halts the reaper, cancels live jobs and waits for their goroutines.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()

	s.mu.Lock()
	for id, cancel := range s.live {
		s.logger.Info().Str("job_id", id).Msg("Cancelling live job for shutdown")
		cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Audit service stopped")
}

// CreateAudit validates the submission, persists a pending job and launches
// its pipeline goroutine.
func (s *Service) CreateAudit(ctx context.Context, req *CreateRequest) (*models.AuditJob, error) {
	canonical, err := common.CanonicalURL(strings.TrimSpace(req.URL))
	if err != nil {
		return nil, fmt.Errorf("invalid audit URL: %w", err)
	}

	plan := req.Plan
	if plan == "" {
		plan = models.PlanBasic
	}
	if !plan.IsValid() {
		return nil, fmt.Errorf("unknown plan tier: %s", req.Plan)
	}

	maxPages := req.MaxPages
	if maxPages <= 0 || maxPages > plan.MaxPages() {
		maxPages = plan.MaxPages()
	}

	now := time.Now()
	job := &models.AuditJob{
		ID:               common.NewJobID(),
		URL:              canonical,
		Plan:             plan,
		MaxPages:         maxPages,
		Status:           models.JobStatusPending,
		SubmitterID:      req.SubmitterID,
		PaymentSessionID: req.PaymentSessionID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("url", job.URL).
		Str("plan", string(job.Plan)).
		Int("max_pages", job.MaxPages).
		Msg("Audit accepted")

	s.launch(job)
	return job, nil
}

// GetJob loads one job by ID.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.AuditJob, error) {
	return s.storage.JobStorage().GetJob(ctx, jobID)
}

// ListJobs returns jobs newest-first according to opts.
func (s *Service) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.AuditJob, error) {
	return s.storage.JobStorage().ListJobs(ctx, opts)
}

// GetResults returns the job with its module results and, once completed,
// the final report. Callable at any point in the lifecycle; partial results
// are visible while the job runs.
func (s *Service) GetResults(ctx context.Context, jobID string) (*Results, error) {
	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	moduleResults, err := s.storage.ResultStorage().ListModuleResults(ctx, jobID)
	if err != nil {
		return nil, err
	}

	results := &Results{Job: job, ModuleResults: moduleResults}
	report, err := s.storage.ReportStorage().GetFinalReport(ctx, jobID)
	switch {
	case err == nil:
		results.Report = report
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}
	return results, nil
}

// Cancel requests cancellation of a pending or running job. Cancelling an
// already-cancelled job is a no-op; other terminal states reject with
// ErrIllegalState.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cancel, isLive := s.live[jobID]
	s.mu.Unlock()

	if isLive {
		// The pipeline goroutine observes the cancellation and writes the
		// terminal state itself
		cancel()
		return nil
	}

	if err := job.MarkCancelled(); err != nil {
		return err
	}
	return s.storage.JobStorage().SaveJob(ctx, job)
}

// LiveJobCount reports how many pipelines are currently running.
func (s *Service) LiveJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *Service) launch(job *models.AuditJob) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.live[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.live, job.ID)
			s.mu.Unlock()
			cancel()
		}()
		s.runJob(ctx, job)
	}()
}

// runJob drives one pipeline and writes the terminal transition.
func (s *Service) runJob(ctx context.Context, job *models.AuditJob) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_id", job.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in audit pipeline")
			s.finalize(job, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := job.MarkStarted(); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Job not startable")
		return
	}
	if err := s.storage.JobStorage().SaveJob(context.Background(), job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist job start")
	}

	started := time.Now()
	_, err := s.pipeline.Run(ctx, job)
	s.finalize(job, err)

	s.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Dur("duration", time.Since(started)).
		Msg("Audit finished")
}

// finalize maps the pipeline outcome onto the terminal transition and
// persists it.
func (s *Service) finalize(job *models.AuditJob, runErr error) {
	var terminalErr error
	switch {
	case runErr == nil:
		terminalErr = job.MarkCompleted()
	case errors.Is(runErr, models.ErrCancelled):
		terminalErr = job.MarkCancelled()
	default:
		terminalErr = job.MarkFailed(runErr.Error())
	}
	if terminalErr != nil {
		s.logger.Warn().Err(terminalErr).Str("job_id", job.ID).Msg("Terminal transition rejected")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.storage.JobStorage().SaveJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist terminal state")
	}
}

// cleanupOrphanedJobs fails running jobs left behind by a previous process.
func (s *Service) cleanupOrphanedJobs() error {
	ctx := context.Background()
	running, err := s.storage.JobStorage().GetJobsByStatus(ctx, models.JobStatusRunning)
	if err != nil {
		return err
	}

	cleaned := 0
	for _, job := range running {
		s.mu.Lock()
		_, isLive := s.live[job.ID]
		s.mu.Unlock()
		if isLive {
			continue
		}
		if err := job.MarkFailed("service restarted while job was running"); err != nil {
			continue
		}
		if err := s.storage.JobStorage().SaveJob(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to fail orphaned job")
			continue
		}
		cleaned++
	}
	if cleaned > 0 {
		s.logger.Info().Int("count", cleaned).Msg("Orphaned jobs failed over")
	}
	return nil
}

// reapStaleJobs fails running jobs that have not written progress within the
// configured staleness window and are not live in this process.
func (s *Service) reapStaleJobs() {
	staleAfter := s.config.Audit.StaleAfter.Std()
	if staleAfter <= 0 {
		return
	}

	ctx := context.Background()
	running, err := s.storage.JobStorage().GetJobsByStatus(ctx, models.JobStatusRunning)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stale job scan failed")
		return
	}

	for _, job := range running {
		if time.Since(job.UpdatedAt) < staleAfter {
			continue
		}
		s.mu.Lock()
		_, isLive := s.live[job.ID]
		s.mu.Unlock()
		if isLive {
			continue
		}

		reason := fmt.Sprintf("job stale: no progress for %s", staleAfter)
		if err := job.MarkFailed(reason); err != nil {
			continue
		}
		if err := s.storage.JobStorage().SaveJob(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to fail stale job")
			continue
		}
		s.logger.Warn().
			Str("job_id", job.ID).
			Str("last_update", job.UpdatedAt.Format(time.RFC3339)).
			Msg("Stale job marked failed")
	}
}
