// -----------------------------------------------------------------------
// Module dispatcher - fans the audit out across the twelve WCAG modules
// -----------------------------------------------------------------------

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
	"github.com/ternarybob/percipio/internal/prompts"
	"github.com/ternarybob/percipio/internal/services/checker"
	"github.com/ternarybob/percipio/internal/services/snapshot"
)

// ProgressFunc is invoked after every module completes or fails, with the
// number of settled modules and the total.
type ProgressFunc func(settled, total int)

// DispatchInput carries everything a module evaluation needs.
type DispatchInput struct {
	Job      *models.AuditJob
	Snapshot *snapshot.Snapshot
	Checks   *checker.CheckResult
}

// Dispatcher runs the per-module LLM evaluations concurrently and persists
// each result as it settles. Module failures are isolated: one module going
// down never aborts its siblings.
type Dispatcher struct {
	llm     interfaces.LLMService
	results interfaces.ResultStorage
	config  *common.DispatcherConfig
	logger  arbor.ILogger
}

func NewDispatcher(llm interfaces.LLMService, results interfaces.ResultStorage, config *common.DispatcherConfig, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{
		llm:     llm,
		results: results,
		config:  config,
		logger:  logger,
	}
}

// analysisPayload is the per-module evidence bundle substituted into the
// prompt template.
type analysisPayload struct {
	Site              *snapshot.BaseSnapshot `json:"site"`
	Evidence          any                    `json:"evidence"`
	AutomatedFindings []checker.Finding      `json:"automated_findings,omitempty"`
}

// Dispatch evaluates every module against the snapshot and returns the full
// set of module results, completed and failed alike. The only error returned
// is context cancellation or expiry; per-module failures are carried inside
// the results.
func (d *Dispatcher) Dispatch(ctx context.Context, in *DispatchInput, onProgress ProgressFunc) ([]*models.ModuleResult, error) {
	moduleNames := prompts.ModuleNames()
	total := len(moduleNames)

	concurrency := d.config.ModuleConcurrency
	if concurrency < 2 {
		concurrency = 2
	}

	d.logger.Info().
		Str("job_id", in.Job.ID).
		Int("modules", total).
		Int("concurrency", concurrency).
		Msg("Dispatching module evaluations")

	type settled struct {
		result *models.ModuleResult
	}

	sem := make(chan struct{}, concurrency)
	out := make(chan settled, total)

	var wg sync.WaitGroup
	for _, name := range moduleNames {
		wg.Add(1)
		go func(moduleName string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				out <- settled{result: d.abortedResult(in.Job, moduleName, ctx.Err())}
				return
			}
			out <- settled{result: d.runModule(ctx, in, moduleName)}
		}(name)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var results []*models.ModuleResult
	done := 0
	for s := range out {
		done++
		// Persist in completion order so a crash mid-dispatch leaves the
		// finished modules recoverable
		if err := d.results.UpsertModuleResult(ctx, s.result); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn().Err(err).
				Str("job_id", in.Job.ID).
				Str("module", s.result.ModuleName).
				Msg("Failed to persist module result")
		}
		results = append(results, s.result)
		if onProgress != nil {
			onProgress(done, total)
		}
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// runModule executes a single module evaluation end to end: prompt assembly,
// then up to MaxAttempts rounds of LLM call, repair and parse. A response
// that repairs into valid JSON settles on the attempt that produced it; a
// transient call failure or an unparseable response retries the whole call
// with backoff. Permanent provider failures and context errors settle
// immediately.
func (d *Dispatcher) runModule(ctx context.Context, in *DispatchInput, moduleName string) *models.ModuleResult {
	result := &models.ModuleResult{
		ID:          common.NewResultID(),
		JobID:       in.Job.ID,
		ModuleName:  moduleName,
		Status:      models.ModuleStatusRunning,
		SubmitterID: in.Job.SubmitterID,
		CreatedAt:   time.Now(),
	}

	prompt, err := d.buildModulePrompt(in, moduleName)
	if err != nil {
		return d.failResult(result, err)
	}
	req := &interfaces.CompletionRequest{
		System: prompts.SystemPrompt(moduleName),
		Prompt: prompt,
	}

	maxAttempts := d.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := d.completeOnce(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return d.failResult(result, ctx.Err())
			}
			if !errors.Is(err, models.ErrLLMTransient) {
				return d.failResult(result, err)
			}
			lastErr = err
		} else {
			result.RawOutput = resp.Text
			result.TokenUsage = resp.Usage

			parsed, perr := d.parseResponse(resp.Text)
			if perr == nil {
				now := time.Now()
				result.Status = models.ModuleStatusCompleted
				result.Result = parsed
				result.CompletedAt = &now

				d.logger.Info().
					Str("job_id", in.Job.ID).
					Str("module", moduleName).
					Int("score", parsed.Summary.Score).
					Str("level", parsed.Summary.ComplianceLevel).
					Msg("Module evaluation completed")

				return result
			}
			// The model produced something repair could not rescue; ask again
			lastErr = perr
		}

		if attempt == maxAttempts {
			break
		}

		backoff := d.retryBackoff(attempt, lastErr)
		d.logger.Warn().Err(lastErr).
			Str("module", moduleName).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Module attempt failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return d.failResult(result, ctx.Err())
		}
	}
	return d.failResult(result, lastErr)
}

// completeOnce issues one LLM call under the per-call timeout.
func (d *Dispatcher) completeOnce(ctx context.Context, req *interfaces.CompletionRequest) (*interfaces.CompletionResponse, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if d.config.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, d.config.CallTimeout.Std())
		defer cancel()
	}
	return d.llm.Complete(callCtx, req)
}

// parseResponse runs the tolerant repair pipeline and schema parse over one
// model response.
func (d *Dispatcher) parseResponse(text string) (*models.AnalysisResult, error) {
	repaired, err := RepairJSON(text)
	if err != nil {
		return nil, err
	}
	return ParseAnalysisResult(repaired)
}

// retryBackoff doubles the base per attempt with ±20% jitter, unless the
// provider supplied its own retry delay.
func (d *Dispatcher) retryBackoff(attempt int, lastErr error) time.Duration {
	var retryAfter *models.RetryAfterError
	if errors.As(lastErr, &retryAfter) && retryAfter.Delay > 0 {
		return retryAfter.Delay
	}

	base := d.config.RetryBackoff.Std()
	if base <= 0 {
		base = time.Second
	}
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(backoff) * jitter)
}

func (d *Dispatcher) buildModulePrompt(in *DispatchInput, moduleName string) (string, error) {
	payload := analysisPayload{
		Site:     in.Snapshot.Base,
		Evidence: in.Snapshot.Slices[moduleName],
	}
	if in.Checks != nil {
		payload.AutomatedFindings = append(in.Checks.Violations, in.Checks.Warnings...)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal analysis payload for %s: %w", moduleName, err)
	}
	return prompts.BuildPrompt(moduleName, string(data))
}

func (d *Dispatcher) failResult(result *models.ModuleResult, err error) *models.ModuleResult {
	now := time.Now()
	result.Status = models.ModuleStatusFailed
	result.Error = err.Error()
	result.CompletedAt = &now

	d.logger.Warn().Err(err).
		Str("job_id", result.JobID).
		Str("module", result.ModuleName).
		Msg("Module evaluation failed")

	return result
}

func (d *Dispatcher) abortedResult(job *models.AuditJob, moduleName string, cause error) *models.ModuleResult {
	now := time.Now()
	return &models.ModuleResult{
		ID:          common.NewResultID(),
		JobID:       job.ID,
		ModuleName:  moduleName,
		Status:      models.ModuleStatusFailed,
		Error:       cause.Error(),
		SubmitterID: job.SubmitterID,
		CreatedAt:   now,
		CompletedAt: &now,
	}
}
