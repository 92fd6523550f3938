package models

import "time"

// TaskCategory identifies the kind of research request. The set is closed:
// unknown categories are rejected before a task is queued.
type TaskCategory string

const (
	// CategoryResearch runs the full pipeline: literature and compound
	// analysis in parallel, then cross-referencing of both.
	CategoryResearch TaskCategory = "research"
	// CategoryDiscovery analyzes a compound and optionally cross-references it.
	CategoryDiscovery TaskCategory = "discovery"
	// CategoryLiteratureReview runs a single literature pass.
	CategoryLiteratureReview TaskCategory = "literature-review"
	// CategoryCrossValidation validates literature findings against
	// cross-reference sources.
	CategoryCrossValidation TaskCategory = "cross-validation"
)

// Valid returns true if the category is a known value.
func (c TaskCategory) Valid() bool {
	switch c {
	case CategoryResearch, CategoryDiscovery, CategoryLiteratureReview, CategoryCrossValidation:
		return true
	default:
		return false
	}
}

// TaskPriority orders tasks in the queue.
type TaskPriority string

const (
	// PriorityLow is for background work.
	PriorityLow TaskPriority = "low"
	// PriorityMedium is the default priority.
	PriorityMedium TaskPriority = "medium"
	// PriorityHigh is dequeued before medium and low.
	PriorityHigh TaskPriority = "high"
	// PriorityUrgent jumps ahead of everything else.
	PriorityUrgent TaskPriority = "urgent"
)

// Valid returns true if the priority is a known value.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Rank returns a numeric rank for queue ordering. Higher ranks dequeue first.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// TaskStatus represents the current state of a coordinated task.
// Transitions are monotonic: pending -> in_progress -> terminal.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is queued and has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the workflow is executing.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the workflow finished and a final
	// result was synthesized.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates a required step failed terminally.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled before it started.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// WorkflowStep is one worker invocation within a task's workflow.
type WorkflowStep struct {
	// StepID is unique within the workflow.
	StepID string `json:"step_id"`
	// WorkerType selects the worker that executes this step.
	WorkerType WorkerType `json:"worker_type"`
	// Input is the step's declared payload. At execution time the outputs
	// of prerequisite steps are merged in under PrerequisitesKey.
	Input map[string]any `json:"input,omitempty"`
	// DependsOn lists step IDs that must resolve before this step runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// Parallel allows this step to run concurrently with sibling steps
	// once its prerequisites are satisfied.
	Parallel bool `json:"parallel,omitempty"`
	// Optional marks a step whose failure does not abort the task.
	Optional bool `json:"optional,omitempty"`
}

// StepResult pairs a step with the output it produced. A nil Output records
// an optional step that failed; required failures abort the task instead.
type StepResult struct {
	// StepID is the workflow step this result belongs to.
	StepID string `json:"step_id"`
	// WorkerType is the worker that ran (or was supposed to run) the step.
	WorkerType WorkerType `json:"worker_type"`
	// Output is the worker's output, or nil when an optional step failed.
	Output *WorkerOutput `json:"output,omitempty"`
}

// CoordinatedTask is a research request and everything produced while
// driving it to a terminal state. Only the coordinator mutates a task;
// once the status is terminal the record is immutable.
type CoordinatedTask struct {
	// ID is the unique identifier generated on submission.
	ID string `json:"id"`
	// Category determines the workflow template.
	Category TaskCategory `json:"category"`
	// Priority orders the task in the queue.
	Priority TaskPriority `json:"priority"`
	// Input is the caller-supplied payload.
	Input map[string]any `json:"input,omitempty"`
	// RequiredWorkers lists the worker types the workflow uses.
	RequiredWorkers []WorkerType `json:"required_workers"`
	// Workflow is the dependency-ordered plan generated for the category.
	Workflow []WorkflowStep `json:"workflow"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`
	// Results holds per-step outputs in completion order.
	Results []StepResult `json:"results,omitempty"`
	// FinalResult is present iff Status is completed.
	FinalResult *SynthesizedResult `json:"final_result,omitempty"`
	// SubmittedAt is when the task entered the queue.
	SubmittedAt time.Time `json:"submitted_at"`
	// StartedAt is when the workflow began executing.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error holds the failure reason iff Status is failed.
	Error string `json:"error,omitempty"`
}

// Result returns the recorded result for a step, or nil if none exists.
func (t *CoordinatedTask) Result(stepID string) *StepResult {
	for i := range t.Results {
		if t.Results[i].StepID == stepID {
			return &t.Results[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the task. Status queries hand out clones so
// callers can never observe a partially-updated record.
func (t *CoordinatedTask) Clone() *CoordinatedTask {
	if t == nil {
		return nil
	}
	c := *t
	c.Input = cloneMap(t.Input)
	c.RequiredWorkers = append([]WorkerType(nil), t.RequiredWorkers...)
	c.Workflow = make([]WorkflowStep, len(t.Workflow))
	for i, s := range t.Workflow {
		s.Input = cloneMap(s.Input)
		s.DependsOn = append([]string(nil), s.DependsOn...)
		c.Workflow[i] = s
	}
	c.Results = make([]StepResult, len(t.Results))
	for i, r := range t.Results {
		r.Output = r.Output.Clone()
		c.Results[i] = r
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return &c
}

// cloneMap shallow-copies a payload map. Payload values are treated as
// immutable once attached to a task.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
