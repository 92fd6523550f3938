package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phytolab/sage/internal/worker"
	"github.com/phytolab/sage/pkg/models"
)

// busyRetryDelay is how long the executor idles before re-offering a step
// that was rejected by a worker at capacity, when nothing else is running.
const busyRetryDelay = 50 * time.Millisecond

// stepOutcome carries one step's terminal result back to the executor.
type stepOutcome struct {
	step   models.WorkflowStep
	output *models.WorkerOutput
	err    error
}

// executeWorkflow runs the task's workflow to completion. Steps launch as
// soon as their prerequisites resolve; steps not marked parallel run alone
// and block further launches until they finish. A required step's failure
// aborts the workflow once in-flight siblings drain; an optional step's
// failure records a gap and the workflow continues. Results are collected
// in completion order.
func (c *Coordinator) executeWorkflow(ctx context.Context, task *models.CoordinatedTask) ([]models.StepResult, error) {
	total := len(task.Workflow)
	resolved := make(map[string]*models.WorkerOutput, total)
	launched := make(map[string]bool, total)
	results := make([]models.StepResult, 0, total)
	outcomes := make(chan stepOutcome, total)

	inFlight := 0
	// id of the non-parallel step currently running
	serialStep := ""
	// steps rejected by a busy worker, held back until state changes
	deferred := make(map[string]bool)
	var abortErr error

	for {
		if len(resolved) == total {
			return results, nil
		}
		if abortErr != nil && inFlight == 0 {
			return results, abortErr
		}

		if abortErr == nil && serialStep == "" {
			for _, step := range task.Workflow {
				if launched[step.StepID] || deferred[step.StepID] || !depsResolved(step, resolved) {
					continue
				}
				if !step.Parallel && inFlight > 0 {
					continue
				}

				launched[step.StepID] = true
				inFlight++
				if !step.Parallel {
					serialStep = step.StepID
				}

				c.emitter.emit(Event{Type: EventStepStarted, TaskID: task.ID,
					StepID: step.StepID, WorkerType: step.WorkerType})
				go c.runStep(ctx, task.ID, step, mergeStepInput(step, resolved), outcomes)

				if !step.Parallel {
					break
				}
			}
		}

		if inFlight == 0 {
			if len(deferred) > 0 {
				clear(deferred)
				select {
				case <-ctx.Done():
					return results, ctx.Err()
				case <-time.After(busyRetryDelay):
				}
				continue
			}
			// Template validation guarantees acyclic, satisfiable
			// dependencies, so this only trips on a planner bug.
			return results, fmt.Errorf("workflow stalled with %d unresolved step(s)", total-len(resolved))
		}

		out := <-outcomes
		inFlight--
		if serialStep == out.step.StepID {
			serialStep = ""
		}
		// Any outcome may have freed worker capacity.
		clear(deferred)

		switch {
		case out.err == nil:
			resolved[out.step.StepID] = out.output
			results = append(results, models.StepResult{
				StepID:     out.step.StepID,
				WorkerType: out.step.WorkerType,
				Output:     out.output,
			})
			c.emitter.emit(Event{Type: EventStepCompleted, TaskID: task.ID,
				StepID: out.step.StepID, WorkerType: out.step.WorkerType,
				Message: fmt.Sprintf("confidence %.2f", out.output.Confidence)})

		case errors.Is(out.err, worker.ErrWorkerBusy):
			// Another task holds the worker's last slot. Re-offer the
			// step on a later round; this never counts as a failure.
			delete(launched, out.step.StepID)
			deferred[out.step.StepID] = true
			c.logger.Debug("task %s step %s deferred, %s worker at capacity",
				task.ID, out.step.StepID, out.step.WorkerType)

		case out.step.Optional:
			resolved[out.step.StepID] = nil
			results = append(results, models.StepResult{
				StepID:     out.step.StepID,
				WorkerType: out.step.WorkerType,
			})
			c.emitter.emit(Event{Type: EventStepSkipped, TaskID: task.ID,
				StepID: out.step.StepID, WorkerType: out.step.WorkerType,
				Message: out.err.Error()})
			c.logger.Warn("task %s optional step %s skipped: %v", task.ID, out.step.StepID, out.err)

		default:
			c.emitter.emit(Event{Type: EventStepFailed, TaskID: task.ID,
				StepID: out.step.StepID, WorkerType: out.step.WorkerType,
				Message: out.err.Error()})
			if abortErr == nil {
				abortErr = fmt.Errorf("step %s (%s): %w", out.step.StepID, out.step.WorkerType, out.err)
			}
		}
	}
}

// runStep resolves the step's worker and executes it, reporting the
// outcome on the channel.
func (c *Coordinator) runStep(ctx context.Context, taskID string, step models.WorkflowStep, input map[string]any, outcomes chan<- stepOutcome) {
	rt, err := c.registry.Get(step.WorkerType)
	if err != nil {
		outcomes <- stepOutcome{step: step, err: err}
		return
	}
	output, err := rt.Execute(ctx, taskID, input)
	outcomes <- stepOutcome{step: step, output: output, err: err}
}

// mergeStepInput copies the step's planned input and attaches resolved
// prerequisite outputs. A prerequisite that resolved without an output
// (a skipped optional step) is represented by a missing marker so
// downstream workers can tell absence from failure to merge.
func mergeStepInput(step models.WorkflowStep, resolved map[string]*models.WorkerOutput) map[string]any {
	input := make(map[string]any, len(step.Input)+1)
	for k, v := range step.Input {
		input[k] = v
	}
	if len(step.DependsOn) == 0 {
		return input
	}

	prereqs := make(map[string]any, len(step.DependsOn))
	for _, dep := range step.DependsOn {
		if out := resolved[dep]; out != nil {
			prereqs[dep] = out
		} else {
			prereqs[dep] = models.MissingMarker()
		}
	}
	input[models.PrerequisitesKey] = prereqs
	return input
}

// depsResolved reports whether every prerequisite of the step has reached
// a terminal outcome.
func depsResolved(step models.WorkflowStep, resolved map[string]*models.WorkerOutput) bool {
	for _, dep := range step.DependsOn {
		if _, ok := resolved[dep]; !ok {
			return false
		}
	}
	return true
}
