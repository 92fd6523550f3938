// Package queue holds submitted tasks ordered by priority and submission
// order until the coordinator has a free slot for them.
package queue

import (
	"sort"
	"sync"

	"github.com/phytolab/sage/pkg/models"
)

// entry pairs a task with a monotonic sequence number so that ties within
// a priority tier dequeue in submission order.
type entry struct {
	task *models.CoordinatedTask
	seq  uint64
}

// TaskQueue is a priority queue over pending tasks. Submission never
// blocks; the queue is re-sorted with a stable sort on every submission.
type TaskQueue struct {
	mu      sync.Mutex
	entries []entry
	nextSeq uint64
}

// New creates an empty TaskQueue.
func New() *TaskQueue {
	return &TaskQueue{}
}

// Submit inserts the task in priority order and returns its ID. Urgent
// dequeues before high, high before medium, medium before low; within a
// tier, earlier submissions dequeue first.
func (q *TaskQueue) Submit(task *models.CoordinatedTask) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, entry{task: task, seq: q.nextSeq})
	q.nextSeq++

	sort.SliceStable(q.entries, func(i, j int) bool {
		ri, rj := q.entries[i].task.Priority.Rank(), q.entries[j].task.Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return q.entries[i].seq < q.entries[j].seq
	})

	return task.ID
}

// NextEligible removes and returns the highest-priority pending task if
// activeCount is below maxConcurrent, otherwise nil.
func (q *TaskQueue) NextEligible(activeCount, maxConcurrent int) *models.CoordinatedTask {
	if activeCount >= maxConcurrent {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	task := q.entries[0].task
	q.entries = q.entries[1:]
	return task
}

// Drain removes and returns all queued tasks. Used at shutdown to cancel
// tasks that never started.
func (q *TaskQueue) Drain() []*models.CoordinatedTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := make([]*models.CoordinatedTask, len(q.entries))
	for i, e := range q.entries {
		tasks[i] = e.task
	}
	q.entries = nil
	return tasks
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
