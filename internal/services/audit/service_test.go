package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
)

// ---- fakes ----

type memJobStorage struct {
	mu   sync.Mutex
	rows map[string]*models.AuditJob
}

func newMemJobStorage() *memJobStorage {
	return &memJobStorage{rows: make(map[string]*models.AuditJob)}
}

func (m *memJobStorage) SaveJob(_ context.Context, job *models.AuditJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.rows[job.ID] = &copied
	return nil
}

func (m *memJobStorage) GetJob(_ context.Context, jobID string) (*models.AuditJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.rows[jobID]; ok {
		copied := *j
		return &copied, nil
	}
	return nil, models.ErrNotFound
}

func (m *memJobStorage) ListJobs(_ context.Context, opts *interfaces.JobListOptions) ([]*models.AuditJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditJob
	for _, j := range m.rows {
		if opts != nil && opts.Status != "" && j.Status != opts.Status {
			continue
		}
		copied := *j
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memJobStorage) GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.AuditJob, error) {
	return m.ListJobs(ctx, &interfaces.JobListOptions{Status: status})
}

func (m *memJobStorage) CountJobs(ctx context.Context, opts *interfaces.JobListOptions) (int, error) {
	jobs, err := m.ListJobs(ctx, opts)
	return len(jobs), err
}

type memResultStorage struct {
	mu   sync.Mutex
	rows map[string]*models.ModuleResult
}

func newMemResultStorage() *memResultStorage {
	return &memResultStorage{rows: make(map[string]*models.ModuleResult)}
}

func (m *memResultStorage) UpsertModuleResult(_ context.Context, result *models.ModuleResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[result.JobID+"|"+result.ModuleName] = result
	return nil
}

func (m *memResultStorage) GetModuleResult(_ context.Context, jobID, moduleName string) (*models.ModuleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[jobID+"|"+moduleName]; ok {
		return r, nil
	}
	return nil, models.ErrNotFound
}

func (m *memResultStorage) ListModuleResults(_ context.Context, jobID string) ([]*models.ModuleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ModuleResult
	for _, r := range m.rows {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memReportStorage struct {
	mu   sync.Mutex
	rows map[string]*models.FinalReport
}

func newMemReportStorage() *memReportStorage {
	return &memReportStorage{rows: make(map[string]*models.FinalReport)}
}

func (m *memReportStorage) UpsertFinalReport(_ context.Context, report *models.FinalReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[report.JobID] = report
	return nil
}

func (m *memReportStorage) GetFinalReport(_ context.Context, jobID string) (*models.FinalReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[jobID]; ok {
		return r, nil
	}
	return nil, models.ErrNotFound
}

type memStorageManager struct {
	jobs    *memJobStorage
	results *memResultStorage
	reports *memReportStorage
}

func newMemStorageManager() *memStorageManager {
	return &memStorageManager{
		jobs:    newMemJobStorage(),
		results: newMemResultStorage(),
		reports: newMemReportStorage(),
	}
}

func (m *memStorageManager) JobStorage() interfaces.JobStorage       { return m.jobs }
func (m *memStorageManager) ResultStorage() interfaces.ResultStorage { return m.results }
func (m *memStorageManager) ReportStorage() interfaces.ReportStorage { return m.reports }
func (m *memStorageManager) Close() error                            { return nil }

// fakePipeline scripts the pipeline outcome.
type fakePipeline struct {
	run func(ctx context.Context, job *models.AuditJob) (*models.FinalReport, error)
}

func (f *fakePipeline) Run(ctx context.Context, job *models.AuditJob) (*models.FinalReport, error) {
	return f.run(ctx, job)
}

func newTestService(storage interfaces.StorageManager, pipeline Pipeline) *Service {
	config := common.NewDefaultConfig()
	return NewService(storage, pipeline, config, arbor.NewLogger())
}

func waitTerminal(t *testing.T, storage *memStorageManager, jobID string) *models.AuditJob {
	t.Helper()
	var job *models.AuditJob
	require.Eventually(t, func() bool {
		j, err := storage.jobs.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

// ---- tests ----

func TestCreateAudit_HappyPath(t *testing.T) {
	storage := newMemStorageManager()
	pipeline := &fakePipeline{run: func(_ context.Context, job *models.AuditJob) (*models.FinalReport, error) {
		report := &models.FinalReport{ID: "rpt_1", JobID: job.ID, ConformanceLevel: models.ComplianceAA}
		_ = storage.reports.UpsertFinalReport(context.Background(), report)
		return report, nil
	}}
	s := newTestService(storage, pipeline)

	job, err := s.CreateAudit(context.Background(), &CreateRequest{URL: "https://Example.COM/page#frag", Plan: models.PlanPro})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", job.URL)
	assert.Equal(t, 15, job.MaxPages)

	final := waitTerminal(t, storage, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	s.Stop()
}

func TestCreateAudit_ClampsMaxPagesToPlan(t *testing.T) {
	storage := newMemStorageManager()
	s := newTestService(storage, &fakePipeline{run: func(_ context.Context, _ *models.AuditJob) (*models.FinalReport, error) {
		return nil, nil
	}})

	job, err := s.CreateAudit(context.Background(), &CreateRequest{URL: "https://example.com", Plan: models.PlanBasic, MaxPages: 50})
	require.NoError(t, err)
	assert.Equal(t, 5, job.MaxPages)

	job2, err := s.CreateAudit(context.Background(), &CreateRequest{URL: "https://example.com", Plan: models.PlanEnterprise, MaxPages: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, job2.MaxPages)
	s.Stop()
}

func TestCreateAudit_RejectsBadInput(t *testing.T) {
	s := newTestService(newMemStorageManager(), &fakePipeline{})

	_, err := s.CreateAudit(context.Background(), &CreateRequest{URL: "not a url"})
	require.Error(t, err)

	_, err = s.CreateAudit(context.Background(), &CreateRequest{URL: "https://example.com", Plan: "platinum"})
	require.Error(t, err)
}

func TestRunJob_PipelineFailureMarksFailed(t *testing.T) {
	storage := newMemStorageManager()
	s := newTestService(storage, &fakePipeline{run: func(_ context.Context, _ *models.AuditJob) (*models.FinalReport, error) {
		return nil, errors.New("crawl fatal: root unreachable")
	}})

	job, err := s.CreateAudit(context.Background(), &CreateRequest{URL: "https://example.com"})
	require.NoError(t, err)

	final := waitTerminal(t, storage, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "root unreachable")
	s.Stop()
}

func TestCancel_LiveJob(t *testing.T) {
	storage := newMemStorageManager()
	started := make(chan struct{})
	s := newTestService(storage, &fakePipeline{run: func(ctx context.Context, _ *models.AuditJob) (*models.FinalReport, error) {
		close(started)
		<-ctx.Done()
		return nil, models.ErrCancelled
	}})

	job, err := s.CreateAudit(context.Background(), &CreateRequest{URL: "https://example.com"})
	require.NoError(t, err)
	<-started

	require.NoError(t, s.Cancel(context.Background(), job.ID))

	final := waitTerminal(t, storage, job.ID)
	assert.Equal(t, models.JobStatusCancelled, final.Status)
	s.Stop()
}

func TestCancel_PendingJobNotLive(t *testing.T) {
	storage := newMemStorageManager()
	s := newTestService(storage, &fakePipeline{})

	job := &models.AuditJob{
		ID:        common.NewJobID(),
		URL:       "https://example.com/",
		Status:    models.JobStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, storage.jobs.SaveJob(context.Background(), job))

	require.NoError(t, s.Cancel(context.Background(), job.ID))

	stored, err := storage.jobs.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, stored.Status)
}

func TestCancel_CompletedJobRejected(t *testing.T) {
	storage := newMemStorageManager()
	s := newTestService(storage, &fakePipeline{})

	now := time.Now()
	job := &models.AuditJob{
		ID:          common.NewJobID(),
		URL:         "https://example.com/",
		Status:      models.JobStatusCompleted,
		Progress:    100,
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: &now,
	}
	require.NoError(t, storage.jobs.SaveJob(context.Background(), job))

	err := s.Cancel(context.Background(), job.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrIllegalState)
}

func TestCancel_UnknownJob(t *testing.T) {
	s := newTestService(newMemStorageManager(), &fakePipeline{})
	err := s.Cancel(context.Background(), "job_missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetResults_PartialWhileRunning(t *testing.T) {
	storage := newMemStorageManager()
	s := newTestService(storage, &fakePipeline{})

	job := &models.AuditJob{
		ID:        common.NewJobID(),
		URL:       "https://example.com/",
		Status:    models.JobStatusRunning,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, storage.jobs.SaveJob(context.Background(), job))
	require.NoError(t, storage.results.UpsertModuleResult(context.Background(), &models.ModuleResult{
		ID:         "res_1",
		JobID:      job.ID,
		ModuleName: "1_1_text_alternatives",
		Status:     models.ModuleStatusCompleted,
	}))

	results, err := s.GetResults(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Nil(t, results.Report, "no final report before completion")
	assert.Len(t, results.ModuleResults, 1)
}

func TestReapStaleJobs(t *testing.T) {
	storage := newMemStorageManager()
	s := newTestService(storage, &fakePipeline{})
	s.config.Audit.StaleAfter = common.Duration(15 * time.Minute)

	stale := &models.AuditJob{
		ID:        common.NewJobID(),
		URL:       "https://stale.example.com/",
		Status:    models.JobStatusRunning,
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now().Add(-time.Hour),
	}
	fresh := &models.AuditJob{
		ID:        common.NewJobID(),
		URL:       "https://fresh.example.com/",
		Status:    models.JobStatusRunning,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, storage.jobs.SaveJob(context.Background(), stale))
	require.NoError(t, storage.jobs.SaveJob(context.Background(), fresh))

	s.reapStaleJobs()

	staleStored, err := storage.jobs.GetJob(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, staleStored.Status)
	assert.Contains(t, staleStored.Error, "stale")

	freshStored, err := storage.jobs.GetJob(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, freshStored.Status)
}

func TestCleanupOrphanedJobs(t *testing.T) {
	storage := newMemStorageManager()
	s := newTestService(storage, &fakePipeline{})

	orphan := &models.AuditJob{
		ID:        common.NewJobID(),
		URL:       "https://example.com/",
		Status:    models.JobStatusRunning,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, storage.jobs.SaveJob(context.Background(), orphan))

	require.NoError(t, s.cleanupOrphanedJobs())

	stored, err := storage.jobs.GetJob(context.Background(), orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "restarted")
}
