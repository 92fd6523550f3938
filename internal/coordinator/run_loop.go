package coordinator

import (
	"time"

	"github.com/phytolab/sage/pkg/models"
)

// runLoop is the single scheduling authority. It dequeues eligible tasks
// whenever a global slot is free and drives each one on its own
// goroutine. Nothing in this loop blocks on worker execution.
func (c *Coordinator) runLoop() {
	defer c.wg.Done()

	for {
		c.dispatch()
		select {
		case <-c.ctx.Done():
			return
		case <-c.trigger:
		}
	}
}

// dispatch starts as many queued tasks as the global ceiling allows.
func (c *Coordinator) dispatch() {
	for {
		c.mu.Lock()
		if c.stopping || c.active >= c.cfg.MaxConcurrentTasks {
			c.mu.Unlock()
			return
		}
		task := c.queue.NextEligible(c.active, c.cfg.MaxConcurrentTasks)
		if task == nil {
			c.mu.Unlock()
			return
		}

		now := time.Now()
		task.Status = models.TaskStatusInProgress
		task.StartedAt = &now
		c.active++
		c.mu.Unlock()

		c.emitter.emit(Event{Type: EventTaskStarted, TaskID: task.ID,
			Message: string(task.Category) + " workflow starting"})

		c.wg.Add(1)
		go c.runTask(task)
	}
}

// runTask drives one task's workflow to a terminal state and releases its
// global slot.
func (c *Coordinator) runTask(task *models.CoordinatedTask) {
	defer c.wg.Done()

	results, err := c.executeWorkflow(c.ctx, task)

	now := time.Now()
	c.mu.Lock()
	task.Results = results
	task.CompletedAt = &now
	if err != nil {
		task.Status = models.TaskStatusFailed
		task.Error = err.Error()
	} else {
		// Synthesis never fails: empty or partial results still yield a
		// best-effort result with depressed scores.
		task.FinalResult = c.synth.Combine(results, task.RequiredWorkers)
		task.Status = models.TaskStatusCompleted
	}
	c.finishLocked(task)
	c.active--
	c.mu.Unlock()

	if err != nil {
		c.emitter.emit(Event{Type: EventTaskFailed, TaskID: task.ID, Message: err.Error()})
		c.logger.Warn("task %s failed: %v", task.ID, err)
	} else {
		c.emitter.emit(Event{Type: EventTaskCompleted, TaskID: task.ID,
			Message: "workflow completed"})
		c.logger.Info("task %s completed with %d result(s)", task.ID, len(results))
	}

	c.signal()
}
