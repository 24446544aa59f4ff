package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestJobStorage_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.AuditJob{
		ID:        "job-1",
		URL:       "https://example.com",
		Plan:      models.PlanBasic,
		MaxPages:  5,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, storage.SaveJob(ctx, job))

	got, err := storage.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.URL)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestJobStorage_GetMissing(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())

	_, err := storage.GetJob(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestJobStorage_SaveIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.AuditJob{
		ID:        "job-2",
		URL:       "https://example.com",
		Status:    models.JobStatusRunning,
		CreatedAt: time.Now(),
	}
	require.NoError(t, storage.SaveJob(ctx, job))
	require.NoError(t, storage.SaveJob(ctx, job))

	count, err := storage.CountJobs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJobStorage_ListAndFilter(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	base := time.Now()
	for i, status := range []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusRunning,
		models.JobStatusRunning,
		models.JobStatusCompleted,
	} {
		job := &models.AuditJob{
			ID:        "job-" + string(rune('a'+i)),
			URL:       "https://example.com",
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, storage.SaveJob(ctx, job))
	}

	running, err := storage.GetJobsByStatus(ctx, models.JobStatusRunning)
	require.NoError(t, err)
	assert.Len(t, running, 2)

	all, err := storage.ListJobs(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Newest first
	assert.Equal(t, "job-d", all[0].ID)

	limited, err := storage.ListJobs(ctx, &interfaces.JobListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestResultStorage_UpsertKeyedByJobAndModule(t *testing.T) {
	db := newTestDB(t)
	storage := NewResultStorage(db, arbor.NewLogger())
	ctx := context.Background()

	result := &models.ModuleResult{
		ID:         "res-1",
		JobID:      "job-1",
		ModuleName: "1_1_text_alternatives",
		Status:     models.ModuleStatusCompleted,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, storage.UpsertModuleResult(ctx, result))

	// Retried write with a different row ID lands on the same row
	retry := &models.ModuleResult{
		ID:         "res-2",
		JobID:      "job-1",
		ModuleName: "1_1_text_alternatives",
		Status:     models.ModuleStatusCompleted,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, storage.UpsertModuleResult(ctx, retry))

	results, err := storage.ListModuleResults(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "res-1", results[0].ID)
}

func TestResultStorage_ListScopedToJob(t *testing.T) {
	db := newTestDB(t)
	storage := NewResultStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for _, jobID := range []string{"job-1", "job-2"} {
		result := &models.ModuleResult{
			ID:         "res-" + jobID,
			JobID:      jobID,
			ModuleName: "2_1_keyboard",
			Status:     models.ModuleStatusCompleted,
			CreatedAt:  time.Now(),
		}
		require.NoError(t, storage.UpsertModuleResult(ctx, result))
	}

	results, err := storage.ListModuleResults(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "job-1", results[0].JobID)
}

func TestReportStorage_OneReportPerJob(t *testing.T) {
	db := newTestDB(t)
	storage := NewReportStorage(db, arbor.NewLogger())
	ctx := context.Background()

	report := &models.FinalReport{
		ID:        "rpt-1",
		JobID:     "job-1",
		CreatedAt: time.Now(),
	}
	require.NoError(t, storage.UpsertFinalReport(ctx, report))

	retry := &models.FinalReport{
		ID:        "rpt-2",
		JobID:     "job-1",
		CreatedAt: time.Now(),
	}
	require.NoError(t, storage.UpsertFinalReport(ctx, retry))

	got, err := storage.GetFinalReport(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "rpt-1", got.ID)

	_, err = storage.GetFinalReport(ctx, "job-9")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
