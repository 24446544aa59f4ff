// -----------------------------------------------------------------------
// Progress publisher - coalesces progress writes to at most one per second
// -----------------------------------------------------------------------

package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
)

// defaultFlushInterval is the minimum spacing between persisted progress
// observations for one job.
const defaultFlushInterval = time.Second

// ProgressTracker coalesces frequent progress observations for a single job
// into at most one storage write per flush interval. Observations between
// flushes collapse to the latest one; monotonicity is enforced by the job
// model itself. Close flushes whatever is pending so the terminal transition
// never races a stale percentage.
type ProgressTracker struct {
	job    *models.AuditJob
	jobs   interfaces.JobStorage
	logger arbor.ILogger

	mu      sync.Mutex
	percent int
	phase   string
	dirty   bool

	stop chan struct{}
	done chan struct{}
}

// NewProgressTracker starts the flush loop for a job. The caller must Close
// the tracker before writing the job's terminal state.
func NewProgressTracker(job *models.AuditJob, jobs interfaces.JobStorage, logger arbor.ILogger) *ProgressTracker {
	t := &ProgressTracker{
		job:    job,
		jobs:   jobs,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.loop()
	return t
}

// Update records a progress observation. Cheap and non-blocking; the write
// happens on the next flush tick.
func (t *ProgressTracker) Update(percent int, phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if percent > t.percent {
		t.percent = percent
	}
	if phase != "" {
		t.phase = phase
	}
	t.dirty = true
}

// Close stops the flush loop and performs a final synchronous flush.
func (t *ProgressTracker) Close() {
	close(t.stop)
	<-t.done
	t.flush()
}

func (t *ProgressTracker) loop() {
	defer close(t.done)
	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.flush()
		case <-t.stop:
			return
		}
	}
}

func (t *ProgressTracker) flush() {
	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return
	}
	percent, phase := t.percent, t.phase
	t.dirty = false
	t.mu.Unlock()

	if t.job.IsTerminal() {
		return
	}
	if err := t.job.SetProgress(percent, phase); err != nil {
		return
	}

	// Progress persistence is best-effort; the pipeline must not stall on it
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.jobs.SaveJob(ctx, t.job); err != nil {
		t.logger.Warn().Err(err).
			Str("job_id", t.job.ID).
			Msg("Failed to persist progress")
	}
}
