package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/internal/planner"
	"github.com/phytolab/sage/internal/worker"
	"github.com/phytolab/sage/pkg/models"
)

// scriptedProcessor is a controllable worker for coordinator tests. It
// records every input it receives and can be told to block, fail or
// delay.
type scriptedProcessor struct {
	workerType models.WorkerType

	mu      sync.Mutex
	inputs  []map[string]any
	started []time.Time

	delay   time.Duration
	block   chan struct{} // when set, Process waits for it to close
	failErr error
	onStart func()
	onEnd   func()
}

func (p *scriptedProcessor) Type() models.WorkerType { return p.workerType }

func (p *scriptedProcessor) Validate(map[string]any) error { return nil }

func (p *scriptedProcessor) Process(ctx context.Context, input map[string]any) (*models.WorkerOutput, error) {
	p.mu.Lock()
	p.inputs = append(p.inputs, input)
	p.started = append(p.started, time.Now())
	onStart := p.onStart
	p.mu.Unlock()

	if onStart != nil {
		onStart()
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.onEnd != nil {
		p.onEnd()
	}
	if p.failErr != nil {
		return nil, p.failErr
	}
	return &models.WorkerOutput{
		Result: models.ResultPayload{
			Summary: string(p.workerType) + " done",
			Claims: []models.Claim{{
				Entity:    "ginseng",
				Attribute: "energy",
				Direction: models.DirectionIncrease,
				Statement: "increases energy",
			}},
			EvidenceStrength: 1.0,
		},
		Confidence: 0.8,
	}, nil
}

func (p *scriptedProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inputs)
}

func (p *scriptedProcessor) lastInput() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inputs) == 0 {
		return nil
	}
	return p.inputs[len(p.inputs)-1]
}

// newTestCoordinator wires a coordinator over the given processors with
// fast retry timings. Shutdown is registered as cleanup.
func newTestCoordinator(t *testing.T, cfg Config, procs ...worker.Processor) *Coordinator {
	t.Helper()

	registry := worker.NewRegistry(logging.Nop())
	for _, proc := range procs {
		rt := worker.NewRuntime(proc, worker.RuntimeConfig{
			MaxConcurrent:     4,
			Timeout:           time.Second,
			RetryInitialDelay: time.Millisecond,
		}, logging.Nop())
		if err := registry.Register(rt); err != nil {
			t.Fatalf("register %s: %v", proc.Type(), err)
		}
	}

	c, err := New(cfg, planner.New(logging.Nop()), registry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Shutdown(); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return c
}

func allProcessors() (lit, comp, cross *scriptedProcessor) {
	lit = &scriptedProcessor{workerType: models.WorkerLiterature}
	comp = &scriptedProcessor{workerType: models.WorkerCompoundAnalysis}
	cross = &scriptedProcessor{workerType: models.WorkerCrossReference}
	return lit, comp, cross
}

// waitForTerminal polls until the task leaves the active set or the
// deadline passes.
func waitForTerminal(t *testing.T, c *Coordinator, taskID string) *models.CoordinatedTask {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := c.GetTaskStatus(taskID)
		if err != nil {
			t.Fatalf("GetTaskStatus(%s): %v", taskID, err)
		}
		if task.Status.Terminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal status", taskID)
	return nil
}

func TestSubmitTaskCompletesWorkflow(t *testing.T) {
	lit, comp, cross := allProcessors()
	c := newTestCoordinator(t, Config{}, lit, comp, cross)

	taskID, err := c.SubmitTask(models.CategoryLiteratureReview,
		map[string]any{"query": "ginseng energy"}, models.PriorityHigh)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	if taskID == "" {
		t.Fatal("expected a non-empty task id")
	}

	task := waitForTerminal(t, c, taskID)
	if task.Status != models.TaskStatusCompleted {
		t.Fatalf("status = %s, want %s (error: %s)", task.Status, models.TaskStatusCompleted, task.Error)
	}
	if task.FinalResult == nil {
		t.Fatal("expected a synthesized final result")
	}
	if len(task.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(task.Results))
	}
	if task.StartedAt == nil || task.CompletedAt == nil {
		t.Fatal("expected StartedAt and CompletedAt to be set")
	}
	if lit.callCount() != 1 {
		t.Fatalf("literature worker invoked %d times, want 1", lit.callCount())
	}
}

func TestSubmitTaskGeneratesUniqueIDs(t *testing.T) {
	lit, comp, cross := allProcessors()
	c := newTestCoordinator(t, Config{}, lit, comp, cross)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := c.SubmitTask(models.CategoryLiteratureReview,
			map[string]any{"query": "q"}, models.PriorityLow)
		if err != nil {
			t.Fatalf("SubmitTask: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate task id %s", id)
		}
		seen[id] = true
	}
}

func TestSubmitTaskRejectsUnknownCategory(t *testing.T) {
	lit, comp, cross := allProcessors()
	c := newTestCoordinator(t, Config{}, lit, comp, cross)

	if _, err := c.SubmitTask("quantum-herbalism", nil, models.PriorityMedium); err == nil {
		t.Fatal("expected an error for an unknown category")
	}
	if _, err := c.SubmitTask(models.CategoryResearch, nil, "extreme"); err == nil {
		t.Fatal("expected an error for an unknown priority")
	}
}

func TestGetTaskStatusUnknownID(t *testing.T) {
	lit, comp, cross := allProcessors()
	c := newTestCoordinator(t, Config{}, lit, comp, cross)

	if _, err := c.GetTaskStatus("no-such-task"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestTerminalSnapshotIsStable(t *testing.T) {
	lit, comp, cross := allProcessors()
	c := newTestCoordinator(t, Config{}, lit, comp, cross)

	taskID, err := c.SubmitTask(models.CategoryLiteratureReview,
		map[string]any{"query": "q"}, models.PriorityMedium)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	waitForTerminal(t, c, taskID)

	first, err := c.GetTaskStatus(taskID)
	if err != nil {
		t.Fatalf("GetTaskStatus: %v", err)
	}
	second, err := c.GetTaskStatus(taskID)
	if err != nil {
		t.Fatalf("GetTaskStatus: %v", err)
	}
	if first != second {
		t.Fatal("terminal reads should return the same immutable snapshot")
	}
}

func TestGlobalConcurrencyCeiling(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0

	lit, comp, cross := allProcessors()
	lit.delay = 50 * time.Millisecond
	lit.onStart = func() {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
	}
	lit.onEnd = func() {
		mu.Lock()
		running--
		mu.Unlock()
	}

	c := newTestCoordinator(t, Config{MaxConcurrentTasks: 2}, lit, comp, cross)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := c.SubmitTask(models.CategoryLiteratureReview,
			map[string]any{"query": "q"}, models.PriorityMedium)
		if err != nil {
			t.Fatalf("SubmitTask: %v", err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitForTerminal(t, c, id)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("peak concurrent tasks = %d, want <= 2", peak)
	}
	if lit.callCount() != 5 {
		t.Fatalf("literature worker invoked %d times, want 5", lit.callCount())
	}
}

func TestHigherPriorityDequeuesFirst(t *testing.T) {
	release := make(chan struct{})

	lit, comp, cross := allProcessors()
	lit.block = release

	c := newTestCoordinator(t, Config{MaxConcurrentTasks: 1}, lit, comp, cross)

	blocker, err := c.SubmitTask(models.CategoryLiteratureReview,
		map[string]any{"query": "blocker"}, models.PriorityMedium)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	// Wait until the blocker occupies the only slot.
	deadline := time.Now().Add(time.Second)
	for c.ActiveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	lowID, err := c.SubmitTask(models.CategoryLiteratureReview,
		map[string]any{"query": "low"}, models.PriorityLow)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	urgentID, err := c.SubmitTask(models.CategoryLiteratureReview,
		map[string]any{"query": "urgent"}, models.PriorityUrgent)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	close(release)
	waitForTerminal(t, c, blocker)
	urgent := waitForTerminal(t, c, urgentID)
	low := waitForTerminal(t, c, lowID)

	if urgent.StartedAt == nil || low.StartedAt == nil {
		t.Fatal("expected both tasks to have started")
	}
	if urgent.StartedAt.After(*low.StartedAt) {
		t.Fatalf("urgent task started at %v, after low task at %v", urgent.StartedAt, low.StartedAt)
	}
}

func TestRequiredStepFailureFailsTask(t *testing.T) {
	lit, comp, cross := allProcessors()
	lit.failErr = errors.New("corpus unreachable")

	c := newTestCoordinator(t, Config{}, lit, comp, cross)

	taskID, err := c.SubmitTask(models.CategoryLiteratureReview,
		map[string]any{"query": "q"}, models.PriorityMedium)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	task := waitForTerminal(t, c, taskID)
	if task.Status != models.TaskStatusFailed {
		t.Fatalf("status = %s, want %s", task.Status, models.TaskStatusFailed)
	}
	if task.Error == "" {
		t.Fatal("expected the task error to be recorded")
	}
	if task.FinalResult != nil {
		t.Fatal("failed tasks must not carry a synthesized result")
	}
}

func TestOptionalStepFailureRecordsGap(t *testing.T) {
	lit, comp, cross := allProcessors()
	cross.failErr = errors.New("no traditional sources")

	c := newTestCoordinator(t, Config{}, lit, comp, cross)

	// discovery runs compound-analysis then an optional cross-reference.
	taskID, err := c.SubmitTask(models.CategoryDiscovery,
		map[string]any{"compound": "ginsenoside"}, models.PriorityMedium)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	task := waitForTerminal(t, c, taskID)
	if task.Status != models.TaskStatusCompleted {
		t.Fatalf("status = %s, want %s (error: %s)", task.Status, models.TaskStatusCompleted, task.Error)
	}
	if len(task.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(task.Results))
	}
	var sawGap bool
	for _, res := range task.Results {
		if res.WorkerType == models.WorkerCrossReference && res.Output == nil {
			sawGap = true
		}
	}
	if !sawGap {
		t.Fatal("expected a nil-output result for the skipped optional step")
	}
	if task.FinalResult == nil || len(task.FinalResult.Gaps) == 0 {
		t.Fatal("expected the synthesized result to report a gap")
	}
}

func TestCrossValidationSurvivesCrossReferenceFailure(t *testing.T) {
	lit, comp, cross := allProcessors()
	cross.failErr = errors.New("correlation backend down")

	c := newTestCoordinator(t, Config{}, lit, comp, cross)

	taskID, err := c.SubmitTask(models.CategoryCrossValidation,
		map[string]any{"query": "chamomile sleep"}, models.PriorityMedium)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	task := waitForTerminal(t, c, taskID)
	if task.Status != models.TaskStatusCompleted {
		t.Fatalf("status = %s, want %s (error: %s)", task.Status, models.TaskStatusCompleted, task.Error)
	}
	if task.FinalResult == nil {
		t.Fatal("expected a synthesized final result")
	}
	for _, ev := range task.FinalResult.SupportingEvidence {
		if ev.WorkerType == models.WorkerCrossReference {
			t.Fatal("evidence must omit the failed cross-reference contribution")
		}
	}
	if len(task.FinalResult.Gaps) != 1 {
		t.Fatalf("len(Gaps) = %d, want 1", len(task.FinalResult.Gaps))
	}
}

func TestDependentStepReceivesPrerequisites(t *testing.T) {
	lit, comp, cross := allProcessors()
	c := newTestCoordinator(t, Config{}, lit, comp, cross)

	// research fans out literature and compound-analysis, then runs
	// cross-reference over both outputs.
	taskID, err := c.SubmitTask(models.CategoryResearch,
		map[string]any{"query": "ginseng", "compound": "ginsenoside"}, models.PriorityMedium)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	task := waitForTerminal(t, c, taskID)
	if task.Status != models.TaskStatusCompleted {
		t.Fatalf("status = %s, want %s (error: %s)", task.Status, models.TaskStatusCompleted, task.Error)
	}

	input := cross.lastInput()
	if input == nil {
		t.Fatal("cross-reference worker never ran")
	}
	prereqs, ok := input[models.PrerequisitesKey].(map[string]any)
	if !ok {
		t.Fatalf("expected prerequisite outputs in the step input, got %T", input[models.PrerequisitesKey])
	}
	if len(prereqs) != 2 {
		t.Fatalf("len(prerequisites) = %d, want 2", len(prereqs))
	}
	for stepID := range prereqs {
		output, ok := worker.PrerequisiteOutput(input, stepID)
		if !ok {
			t.Fatalf("prerequisite %s missing or not an output", stepID)
		}
		if output.TaskID != taskID {
			t.Fatalf("prerequisite %s carries task id %s, want %s", stepID, output.TaskID, taskID)
		}
	}
}

func TestWorkerCapacityCollisionRequeues(t *testing.T) {
	lit := &scriptedProcessor{workerType: models.WorkerLiterature, delay: 20 * time.Millisecond}
	comp := &scriptedProcessor{workerType: models.WorkerCompoundAnalysis}
	cross := &scriptedProcessor{workerType: models.WorkerCrossReference}

	// Single-slot literature worker with two tasks competing for it.
	registry := worker.NewRegistry(logging.Nop())
	for _, proc := range []worker.Processor{lit, comp, cross} {
		maxConcurrent := 4
		if proc.Type() == models.WorkerLiterature {
			maxConcurrent = 1
		}
		rt := worker.NewRuntime(proc, worker.RuntimeConfig{
			MaxConcurrent:     maxConcurrent,
			Timeout:           time.Second,
			RetryInitialDelay: time.Millisecond,
		}, logging.Nop())
		if err := registry.Register(rt); err != nil {
			t.Fatalf("register %s: %v", proc.Type(), err)
		}
	}

	c, err := New(Config{MaxConcurrentTasks: 2}, planner.New(logging.Nop()), registry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		if err := c.Shutdown(); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}()

	var ids []string
	for i := 0; i < 2; i++ {
		id, err := c.SubmitTask(models.CategoryLiteratureReview,
			map[string]any{"query": "q"}, models.PriorityMedium)
		if err != nil {
			t.Fatalf("SubmitTask: %v", err)
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		task := waitForTerminal(t, c, id)
		if task.Status != models.TaskStatusCompleted {
			t.Fatalf("task %s status = %s, want %s (error: %s)", id, task.Status, models.TaskStatusCompleted, task.Error)
		}
	}
	// The collision defers the step; it never counts as a retry or a failure.
	if lit.callCount() != 2 {
		t.Fatalf("literature worker invoked %d times, want 2", lit.callCount())
	}
}

func TestShutdownCancelsQueuedTasks(t *testing.T) {
	release := make(chan struct{})
	lit, comp, cross := allProcessors()
	lit.block = release

	registry := worker.NewRegistry(logging.Nop())
	for _, proc := range []worker.Processor{lit, comp, cross} {
		rt := worker.NewRuntime(proc, worker.RuntimeConfig{
			MaxConcurrent:     4,
			Timeout:           time.Second,
			RetryInitialDelay: time.Millisecond,
		}, logging.Nop())
		if err := registry.Register(rt); err != nil {
			t.Fatalf("register %s: %v", proc.Type(), err)
		}
	}

	c, err := New(Config{MaxConcurrentTasks: 1, ShutdownGracePeriod: time.Second},
		planner.New(logging.Nop()), registry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	blocker, err := c.SubmitTask(models.CategoryLiteratureReview,
		map[string]any{"query": "blocker"}, models.PriorityMedium)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for c.ActiveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	queuedID, err := c.SubmitTask(models.CategoryLiteratureReview,
		map[string]any{"query": "queued"}, models.PriorityMedium)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	close(release)
	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	queued, err := c.GetTaskStatus(queuedID)
	if err != nil {
		t.Fatalf("GetTaskStatus(queued): %v", err)
	}
	if queued.Status != models.TaskStatusCancelled {
		t.Fatalf("queued task status = %s, want %s", queued.Status, models.TaskStatusCancelled)
	}

	if _, err := c.SubmitTask(models.CategoryResearch, nil, models.PriorityMedium); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("submit after shutdown: err = %v, want ErrShuttingDown", err)
	}
	_ = blocker
}

func TestEventStreamCoversLifecycle(t *testing.T) {
	lit, comp, cross := allProcessors()

	registry := worker.NewRegistry(logging.Nop())
	for _, proc := range []worker.Processor{lit, comp, cross} {
		rt := worker.NewRuntime(proc, worker.RuntimeConfig{
			MaxConcurrent:     4,
			Timeout:           time.Second,
			RetryInitialDelay: time.Millisecond,
		}, logging.Nop())
		if err := registry.Register(rt); err != nil {
			t.Fatalf("register %s: %v", proc.Type(), err)
		}
	}

	c, err := New(Config{EventBufferSize: 64}, planner.New(logging.Nop()), registry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	taskID, err := c.SubmitTask(models.CategoryLiteratureReview,
		map[string]any{"query": "q"}, models.PriorityMedium)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	waitForTerminal(t, c, taskID)
	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	seen := make(map[EventType]bool)
	for event := range c.Events() {
		if event.TaskID == taskID {
			seen[event.Type] = true
		}
	}
	for _, want := range []EventType{EventTaskSubmitted, EventTaskStarted, EventStepStarted, EventStepCompleted, EventTaskCompleted} {
		if !seen[want] {
			t.Fatalf("event stream missing %s (saw %v)", want, seen)
		}
	}
	if c.DroppedEventCount() != 0 {
		t.Fatalf("dropped %d events with a large buffer", c.DroppedEventCount())
	}
}

func TestShutdownStragglerEventsDoNotPanic(t *testing.T) {
	lit, comp, cross := allProcessors()
	lit.delay = 30 * time.Millisecond

	registry := worker.NewRegistry(logging.Nop())
	for _, proc := range []worker.Processor{lit, comp, cross} {
		rt := worker.NewRuntime(proc, worker.RuntimeConfig{
			MaxConcurrent:     4,
			Timeout:           time.Second,
			RetryInitialDelay: time.Millisecond,
		}, logging.Nop())
		if err := registry.Register(rt); err != nil {
			t.Fatalf("register %s: %v", proc.Type(), err)
		}
	}

	c, err := New(Config{MaxConcurrentTasks: 4, ShutdownGracePeriod: time.Nanosecond},
		planner.New(logging.Nop()), registry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var ids []string
	for i := 0; i < 8; i++ {
		id, err := c.SubmitTask(models.CategoryLiteratureReview,
			map[string]any{"query": "q"}, models.PriorityMedium)
		if err != nil {
			t.Fatalf("SubmitTask: %v", err)
		}
		ids = append(ids, id)
	}
	deadline := time.Now().Add(time.Second)
	for c.ActiveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// The grace period elapses while task goroutines are still running;
	// their late outcome events must be discarded, not crash the process.
	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for _, id := range ids {
		waitForTerminal(t, c, id)
	}
}

func TestSubmitRacingShutdownLeavesNoPendingTask(t *testing.T) {
	lit, comp, cross := allProcessors()
	c := newTestCoordinator(t, Config{MaxConcurrentTasks: 2}, lit, comp, cross)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []string
	)
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for {
				id, err := c.SubmitTask(models.CategoryLiteratureReview,
					map[string]any{"query": "q"}, models.PriorityMedium)
				if err != nil {
					if !errors.Is(err, ErrShuttingDown) {
						t.Errorf("SubmitTask: %v", err)
					}
					return
				}
				mu.Lock()
				ids = append(ids, id)
				mu.Unlock()
			}
		}()
	}
	close(start)
	time.Sleep(2 * time.Millisecond)
	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	wg.Wait()

	// Every accepted task must come out executed or cancelled. An id
	// stuck in pending means it was enqueued after the drain and no
	// dispatcher will ever pick it up.
	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		task, err := c.GetTaskStatus(id)
		if err != nil {
			t.Fatalf("GetTaskStatus(%s): %v", id, err)
		}
		if !task.Status.Terminal() {
			t.Fatalf("task %s status = %s after shutdown, want terminal", id, task.Status)
		}
	}
}
