package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ResultStorage implements the ResultStorage interface for Badger.
// Rows are keyed "jobID|moduleName" so a retried module write lands on
// the same row instead of duplicating it.
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

func resultKey(jobID, moduleName string) string {
	return jobID + "|" + moduleName
}

func (s *ResultStorage) UpsertModuleResult(ctx context.Context, result *models.ModuleResult) error {
	if result == nil {
		return fmt.Errorf("result is required")
	}
	if result.JobID == "" || result.ModuleName == "" {
		return fmt.Errorf("job ID and module name are required")
	}

	key := resultKey(result.JobID, result.ModuleName)

	// Preserve the original row ID on retried writes
	var existing models.ModuleResult
	if err := s.db.Store().Get(key, &existing); err == nil {
		result.ID = existing.ID
	} else if result.ID == "" {
		return fmt.Errorf("result ID is required")
	}

	if err := s.db.Store().Upsert(key, result); err != nil {
		return fmt.Errorf("failed to upsert module result: %w", err)
	}
	return nil
}

func (s *ResultStorage) GetModuleResult(ctx context.Context, jobID, moduleName string) (*models.ModuleResult, error) {
	var result models.ModuleResult
	if err := s.db.Store().Get(resultKey(jobID, moduleName), &result); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("result %s/%s: %w", jobID, moduleName, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get module result: %w", err)
	}
	return &result, nil
}

func (s *ResultStorage) ListModuleResults(ctx context.Context, jobID string) ([]*models.ModuleResult, error) {
	var results []models.ModuleResult
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to list module results: %w", err)
	}

	out := make([]*models.ModuleResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}
