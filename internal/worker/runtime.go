package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/pkg/models"
)

// RuntimeConfig holds the execution policy for one worker.
type RuntimeConfig struct {
	// MaxConcurrent is the worker's own ceiling on in-flight invocations.
	MaxConcurrent int
	// Timeout bounds a single processing attempt.
	Timeout time.Duration
	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int
	// RetryInitialDelay seeds the exponential backoff between attempts.
	RetryInitialDelay time.Duration
}

// withDefaults fills zero fields with safe defaults.
func (c RuntimeConfig) withDefaults() RuntimeConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = 100 * time.Millisecond
	}
	return c
}

// Runtime wraps one Processor with the uniform worker contract. All
// invocations of a worker go through its Runtime.
type Runtime struct {
	id   string
	proc Processor
	cfg  RuntimeConfig

	mu       sync.Mutex
	status   models.WorkerStatus
	inFlight int
	metrics  models.WorkerMetrics
	draining chan struct{}

	wg     sync.WaitGroup
	logger logging.Logger
}

// NewRuntime creates a Runtime for the given processor. The runtime starts
// inactive; call Start before executing.
func NewRuntime(proc Processor, cfg RuntimeConfig, logger logging.Logger) *Runtime {
	return &Runtime{
		id:     string(proc.Type()) + "-worker",
		proc:   proc,
		cfg:    cfg.withDefaults(),
		status: models.WorkerStatusInactive,
		logger: logging.OrNop(logger),
	}
}

// ID returns the worker's identifier.
func (r *Runtime) ID() string {
	return r.id
}

// Type returns the worker type served by this runtime.
func (r *Runtime) Type() models.WorkerType {
	return r.proc.Type()
}

// MaxConcurrent returns the worker's own concurrency ceiling.
func (r *Runtime) MaxConcurrent() int {
	return r.cfg.MaxConcurrent
}

// Start transitions the worker from inactive to active.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == models.WorkerStatusActive {
		return nil
	}
	if r.status != models.WorkerStatusInactive {
		return fmt.Errorf("cannot start %s worker in status %s", r.Type(), r.status)
	}
	r.status = models.WorkerStatusActive
	r.logger.Info("worker %s started", r.id)
	return nil
}

// Stop rejects new invocations, waits for in-flight ones up to the grace
// period and transitions to inactive. In-flight work past the grace period
// is abandoned, not preempted.
func (r *Runtime) Stop(grace time.Duration) error {
	r.mu.Lock()
	if r.status == models.WorkerStatusInactive {
		r.mu.Unlock()
		return nil
	}
	r.status = models.WorkerStatusMaintenance
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(grace):
		r.logger.Warn("worker %s stop grace period elapsed with %d invocation(s) in flight", r.id, r.InFlight())
	}

	r.mu.Lock()
	r.status = models.WorkerStatusInactive
	r.mu.Unlock()
	r.logger.Info("worker %s stopped", r.id)
	return nil
}

// Execute runs one invocation through the full contract: concurrency
// guard, validation, per-attempt timeout, retry with exponential backoff,
// post-processing and metrics.
func (r *Runtime) Execute(ctx context.Context, taskID string, input map[string]any) (*models.WorkerOutput, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()

	if err := r.proc.Validate(input); err != nil {
		r.recordFailure()
		invocationsTotal.WithLabelValues(string(r.Type()), "validation_error").Inc()
		return nil, &ValidationError{WorkerType: r.Type(), Reason: err.Error()}
	}

	var lastErr error
	for attempt := 0; attempt <= r.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			retriesTotal.WithLabelValues(string(r.Type())).Inc()
			// initialDelay * 2^(attempt-1)
			delay := r.cfg.RetryInitialDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				r.recordFailure()
				invocationsTotal.WithLabelValues(string(r.Type()), "cancelled").Inc()
				return nil, ctx.Err()
			}
			r.logger.Debug("worker %s retrying task %s, attempt %d/%d", r.id, taskID, attempt+1, r.cfg.RetryAttempts+1)
		}

		output, err := r.executeOnce(ctx, taskID, input)
		if err == nil {
			if pp, ok := r.proc.(PostProcessor); ok {
				if ppErr := pp.PostProcess(output); ppErr != nil {
					lastErr = fmt.Errorf("post-process: %w", ppErr)
					continue
				}
			}
			r.recordSuccess(output.ExecutionTime)
			invocationsTotal.WithLabelValues(string(r.Type()), "success").Inc()
			executionSeconds.WithLabelValues(string(r.Type())).Observe(output.ExecutionTime.Seconds())
			return output, nil
		}

		lastErr = err
		if !Retryable(err) {
			break
		}
	}

	r.recordFailure()
	invocationsTotal.WithLabelValues(string(r.Type()), "failure").Inc()
	return nil, fmt.Errorf("%s worker failed after %d attempt(s): %w", r.Type(), r.cfg.RetryAttempts+1, lastErr)
}

// executeOnce runs a single processing attempt under the configured
// timeout. The processing goroutine is not preempted on timeout; its
// eventual result is discarded via the buffered channel.
func (r *Runtime) executeOnce(ctx context.Context, taskID string, input map[string]any) (*models.WorkerOutput, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	type attemptResult struct {
		output *models.WorkerOutput
		err    error
	}
	resultCh := make(chan attemptResult, 1)

	start := time.Now()
	go func() {
		output, err := r.proc.Process(attemptCtx, input)
		resultCh <- attemptResult{output: output, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		if res.output == nil {
			return nil, fmt.Errorf("%s worker returned no output", r.Type())
		}
		res.output.TaskID = taskID
		res.output.ExecutionTime = time.Since(start)
		res.output.Confidence = clamp01(res.output.Confidence)
		return res.output, nil
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{WorkerType: r.Type(), Timeout: r.cfg.Timeout}
	}
}

// acquire atomically checks status and capacity and claims a slot.
func (r *Runtime) acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != models.WorkerStatusActive {
		return fmt.Errorf("%w: %s worker is %s", ErrWorkerUnavailable, r.Type(), r.status)
	}
	if r.inFlight >= r.cfg.MaxConcurrent {
		return fmt.Errorf("%w: %s worker at capacity (%d)", ErrWorkerBusy, r.Type(), r.cfg.MaxConcurrent)
	}
	r.inFlight++
	r.wg.Add(1)
	return nil
}

func (r *Runtime) release() {
	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	r.wg.Done()
}

func (r *Runtime) recordSuccess(execTime time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.TotalInvocations++
	r.metrics.Successes++
	// Fold into the running average over successful invocations.
	n := r.metrics.Successes
	r.metrics.AvgExecutionTime += (execTime - r.metrics.AvgExecutionTime) / time.Duration(n)
	r.metrics.LastExecution = time.Now()
}

func (r *Runtime) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.TotalInvocations++
	r.metrics.Failures++
	r.metrics.LastExecution = time.Now()
}

// Status returns the worker's lifecycle state.
func (r *Runtime) Status() models.WorkerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// InFlight returns the number of invocations currently executing.
func (r *Runtime) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// Metrics returns a copy of the cumulative metrics.
func (r *Runtime) Metrics() models.WorkerMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// HealthCheck reports status, in-flight count and time since the last
// execution.
func (r *Runtime) HealthCheck() models.HealthReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sinceLast time.Duration
	if !r.metrics.LastExecution.IsZero() {
		sinceLast = time.Since(r.metrics.LastExecution)
	}
	return models.HealthReport{
		WorkerType:         r.Type(),
		Status:             r.status,
		InFlight:           r.inFlight,
		MaxConcurrent:      r.cfg.MaxConcurrent,
		SinceLastExecution: sinceLast,
		Metrics:            r.metrics,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
