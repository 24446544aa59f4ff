package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/ternarybob/percipio/internal/services/snapshot"
)

const fixtureHTML = `<!DOCTYPE html>
<html lang="en">
<head><title>Fixture Site</title></head>
<body>
  <nav><a href="/about">About</a></nav>
  <main>
    <h1>Welcome</h1>
    <img src="/logo.png" alt="Company logo">
    <img src="/banner.png">
    <form>
      <label for="email">Email</label>
      <input type="email" id="email" name="email">
      <input type="text" name="phone" placeholder="Phone">
    </form>
  </main>
</body>
</html>`

func testCrawlResult() *models.CrawlResult {
	return &models.CrawlResult{
		RootURL: "https://example.com/",
		Pages: []models.PageSnapshot{
			{
				URL:        "https://example.com/",
				StatusCode: 200,
				Title:      "Fixture Site",
				Lang:       "en",
				HTML:       fixtureHTML,
				FetchedAt:  time.Now(),
			},
		},
	}
}

func testSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.NewExtractor(arbor.NewLogger()).Extract(testCrawlResult())
	require.NoError(t, err)
	return snap
}

// ---- in-memory job/report storage for orchestrator tests ----

type memJobStorage struct {
	mu    sync.Mutex
	rows  map[string]*models.AuditJob
	saves int
}

func newMemJobStorage() *memJobStorage {
	return &memJobStorage{rows: make(map[string]*models.AuditJob)}
}

func (m *memJobStorage) SaveJob(_ context.Context, job *models.AuditJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.rows[job.ID] = &copied
	m.saves++
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
