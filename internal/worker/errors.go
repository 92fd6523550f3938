package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/phytolab/sage/pkg/models"
)

// ErrWorkerBusy indicates an invocation was attempted while the worker was
// already at its concurrency ceiling. The invocation is rejected, not
// queued; the coordinator re-schedules the step later.
var ErrWorkerBusy = errors.New("worker busy")

// ErrWorkerUnavailable indicates the worker is not registered or not
// accepting invocations. Fatal for the step, never retried.
var ErrWorkerUnavailable = errors.New("worker unavailable")

// ValidationError indicates malformed step input. Fatal for the step
// immediately, no retry.
type ValidationError struct {
	WorkerType models.WorkerType
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input for %s worker: %s", e.WorkerType, e.Reason)
}

// TimeoutError indicates an invocation did not complete within the
// worker's configured timeout. The underlying operation is not preempted;
// its eventual result is discarded.
type TimeoutError struct {
	WorkerType models.WorkerType
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s worker timed out after %s", e.WorkerType, e.Timeout)
}

// Retryable reports whether an invocation failure should be retried.
// Timeouts and processing errors are retryable; validation failures, busy
// rejections and unavailable workers are not.
func Retryable(err error) bool {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return false
	}
	if errors.Is(err, ErrWorkerBusy) || errors.Is(err, ErrWorkerUnavailable) {
		return false
	}
	return true
}
