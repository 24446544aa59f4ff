package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ReportStorage implements the ReportStorage interface for Badger.
// Reports are keyed by job ID, one report per audit.
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReportStorage creates a new ReportStorage instance
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ReportStorage) UpsertFinalReport(ctx context.Context, report *models.FinalReport) error {
	if report == nil {
		return fmt.Errorf("report is required")
	}
	if report.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	// Preserve the original row ID on retried writes
	var existing models.FinalReport
	if err := s.db.Store().Get(report.JobID, &existing); err == nil {
		report.ID = existing.ID
	} else if report.ID == "" {
		return fmt.Errorf("report ID is required")
	}

	if err := s.db.Store().Upsert(report.JobID, report); err != nil {
		return fmt.Errorf("failed to upsert final report: %w", err)
	}
	return nil
}

func (s *ReportStorage) GetFinalReport(ctx context.Context, jobID string) (*models.FinalReport, error) {
	var report models.FinalReport
	if err := s.db.Store().Get(jobID, &report); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("report for job %s: %w", jobID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get final report: %w", err)
	}
	return &report, nil
}
