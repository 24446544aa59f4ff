// -----------------------------------------------------------------------
// Audit Job - durable job row plus lifecycle state machine
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// JobStatus represents the state of an audit job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// PlanTier controls the crawl page budget granted to a job.
type PlanTier string

const (
	PlanBasic      PlanTier = "basic"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// MaxPages returns the page cap for a plan tier. Requested caps above the
// tier limit are clamped by the audit service, not here.
func (p PlanTier) MaxPages() int {
	switch p {
	case PlanPro:
		return 15
	case PlanEnterprise:
		return 30
	default:
		return 5
	}
}

// IsValid reports whether p is a known plan tier.
func (p PlanTier) IsValid() bool {
	switch p {
	case PlanBasic, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// AuditJob is the durable row for one accessibility audit.
//
// Lifecycle: pending -> running -> completed | failed | cancelled, with
// pending -> cancelled also permitted. Terminal states are absorbing; the
// only legal write after a terminal transition is archival, which is outside
// this model. Progress is monotonic non-decreasing and 100 is reserved for
// the completed transition.
type AuditJob struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Plan        PlanTier  `json:"plan"`
	MaxPages    int       `json:"max_pages"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"` // 0..100
	Phase       string    `json:"phase,omitempty"`
	SubmitterID string    `json:"user_id,omitempty"`
	// PaymentSessionID is carried opaquely for the external billing
	// collaborator; the core never interprets it.
	PaymentSessionID string     `json:"payment_session_id,omitempty"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the job is in an absorbing state.
func (j *AuditJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// MarkStarted transitions pending -> running.
func (j *AuditJob) MarkStarted() error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("%w: cannot start job in status %s", ErrIllegalState, j.Status)
	}
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// SetProgress records a progress observation. Percent is clamped into 0..99
// (100 is reserved for MarkCompleted) and never moves backwards. Updating a
// running job with an equal percent is an idempotent no-op.
func (j *AuditJob) SetProgress(percent int, phase string) error {
	if j.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrIllegalState, j.ID, j.Status)
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 99 {
		percent = 99
	}
	if percent > j.Progress {
		j.Progress = percent
	}
	if phase != "" {
		j.Phase = phase
	}
	j.UpdatedAt = time.Now()
	return nil
}

// MarkCompleted transitions running -> completed and pins progress to 100.
// A second completion is a no-op so retried terminal writes stay idempotent.
func (j *AuditJob) MarkCompleted() error {
	if j.Status == JobStatusCompleted {
		return nil
	}
	if j.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrIllegalState, j.ID, j.Status)
	}
	if j.Status != JobStatusRunning {
		return fmt.Errorf("%w: cannot complete job in status %s", ErrIllegalState, j.Status)
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.Phase = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// MarkFailed transitions pending/running -> failed with a short error text.
// Duplicate failure is a no-op.
func (j *AuditJob) MarkFailed(errorMsg string) error {
	if j.Status == JobStatusFailed {
		return nil
	}
	if j.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrIllegalState, j.ID, j.Status)
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = errorMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// MarkCancelled transitions pending/running -> cancelled. Duplicate
// cancellation is a no-op.
func (j *AuditJob) MarkCancelled() error {
	if j.Status == JobStatusCancelled {
		return nil
	}
	if j.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrIllegalState, j.ID, j.Status)
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}
