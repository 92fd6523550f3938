// Package coordinator is the single scheduling authority of sage. It owns
// task lifecycle end to end: submission into the priority queue, workflow
// planning, bounded-concurrency execution against registered workers and
// synthesis of the collected outputs into the final result.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robfig/cron/v3"

	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/internal/planner"
	"github.com/phytolab/sage/internal/queue"
	"github.com/phytolab/sage/internal/store"
	"github.com/phytolab/sage/internal/synthesis"
	"github.com/phytolab/sage/internal/worker"
	"github.com/phytolab/sage/pkg/models"
)

// ErrTaskNotFound indicates no task exists for the given id.
var ErrTaskNotFound = errors.New("task not found")

// ErrShuttingDown indicates the coordinator no longer accepts tasks.
var ErrShuttingDown = errors.New("coordinator is shutting down")

// Config bounds the coordinator's resources.
type Config struct {
	// MaxConcurrentTasks is the global ceiling on in-progress tasks.
	MaxConcurrentTasks int
	// ShutdownGracePeriod bounds the wait for in-flight tasks at shutdown.
	ShutdownGracePeriod time.Duration
	// SnapshotCacheSize bounds the in-memory retention of terminal tasks.
	SnapshotCacheSize int
	// EventBufferSize sizes the lifecycle event channel.
	EventBufferSize int
	// HealthSweepSchedule is a cron spec for the periodic worker health
	// sweep. Empty disables the sweep.
	HealthSweepSchedule string
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = 4
	}
	if c.ShutdownGracePeriod <= 0 {
		c.ShutdownGracePeriod = 30 * time.Second
	}
	if c.SnapshotCacheSize <= 0 {
		c.SnapshotCacheSize = 512
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = 100
	}
	return c
}

// Option configures optional collaborators.
type Option func(*Coordinator)

// WithStore attaches a durable task store. Terminal snapshots are written
// to it and status queries fall back to it after cache eviction.
func WithStore(s store.TaskStore) Option {
	return func(c *Coordinator) {
		c.store = s
	}
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logging.OrNop(logger)
	}
}

// WithSynthesizer replaces the default result synthesizer.
func WithSynthesizer(s *synthesis.Synthesizer) Option {
	return func(c *Coordinator) {
		c.synth = s
	}
}

// Coordinator is the scheduling engine. All task mutation happens under
// its mutex; status queries observe consistent snapshots.
type Coordinator struct {
	cfg      Config
	queue    *queue.TaskQueue
	planner  *planner.Planner
	registry *worker.Registry
	synth    *synthesis.Synthesizer
	store    store.TaskStore
	logger   logging.Logger
	emitter  *emitter

	mu       sync.RWMutex
	tasks    map[string]*models.CoordinatedTask // pending and in-progress
	terminal *lru.Cache[string, *models.CoordinatedTask]
	active   int
	started  bool
	stopping bool

	trigger chan struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	cron    *cron.Cron
}

// New creates a Coordinator over the given planner and worker registry.
func New(cfg Config, pl *planner.Planner, registry *worker.Registry, opts ...Option) (*Coordinator, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:      cfg,
		queue:    queue.New(),
		planner:  pl,
		registry: registry,
		synth:    synthesis.New(),
		logger:   logging.Nop(),
		tasks:    make(map[string]*models.CoordinatedTask),
		trigger:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.emitter = newEmitter(cfg.EventBufferSize, c.logger)

	cache, err := lru.New[string, *models.CoordinatedTask](cfg.SnapshotCacheSize)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}
	c.terminal = cache

	return c, nil
}

// Start launches the registered workers, the scheduling loop and the
// periodic health sweep.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if err := c.registry.StartAll(); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	c.wg.Add(1)
	go c.runLoop()

	if c.cfg.HealthSweepSchedule != "" {
		c.cron = cron.New()
		if _, err := c.cron.AddFunc(c.cfg.HealthSweepSchedule, c.healthSweep); err != nil {
			return fmt.Errorf("register health sweep: %w", err)
		}
		c.cron.Start()
	}

	c.logger.Info("coordinator started (max concurrent tasks: %d)", c.cfg.MaxConcurrentTasks)
	return nil
}

// SubmitTask validates the category, plans the workflow and queues the
// task. It returns the generated task id immediately; execution happens
// asynchronously.
func (c *Coordinator) SubmitTask(category models.TaskCategory, input map[string]any, priority models.TaskPriority) (string, error) {
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return "", fmt.Errorf("unknown priority %q", priority)
	}
	if !category.Valid() {
		return "", fmt.Errorf("%w: %q", planner.ErrUnknownCategory, category)
	}

	required, err := c.planner.RequiredWorkers(category)
	if err != nil {
		return "", err
	}
	workflow, err := c.planner.Generate(category, required, input)
	if err != nil {
		return "", err
	}

	task := &models.CoordinatedTask{
		ID:              uuid.New().String(),
		Category:        category,
		Priority:        priority,
		Input:           input,
		RequiredWorkers: required,
		Workflow:        workflow,
		Status:          models.TaskStatusPending,
		SubmittedAt:     time.Now(),
	}

	// Registering and enqueueing happen under one critical section so a
	// concurrent Shutdown either rejects the task here or sees it in the
	// queue when it drains.
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return "", ErrShuttingDown
	}
	c.tasks[task.ID] = task
	c.queue.Submit(task)
	c.mu.Unlock()

	c.emitter.emit(Event{Type: EventTaskSubmitted, TaskID: task.ID,
		Message: fmt.Sprintf("%s task queued at %s priority", category, priority)})
	c.signal()

	return task.ID, nil
}

// GetTaskStatus returns a stable snapshot of the task. Active tasks are
// deep-copied under the lock; terminal tasks are immutable and returned
// as-is, so repeated reads after a terminal transition are identical.
func (c *Coordinator) GetTaskStatus(taskID string) (*models.CoordinatedTask, error) {
	c.mu.RLock()
	if task, ok := c.tasks[taskID]; ok {
		snapshot := task.Clone()
		c.mu.RUnlock()
		return snapshot, nil
	}
	c.mu.RUnlock()

	if snapshot, ok := c.terminal.Get(taskID); ok {
		return snapshot, nil
	}

	if c.store != nil {
		snapshot, err := c.store.GetTask(taskID)
		if err == nil {
			c.terminal.Add(taskID, snapshot)
			return snapshot, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// ListActiveTasks returns snapshots of all pending and in-progress tasks.
func (c *Coordinator) ListActiveTasks() []*models.CoordinatedTask {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tasks := make([]*models.CoordinatedTask, 0, len(c.tasks))
	for _, task := range c.tasks {
		tasks = append(tasks, task.Clone())
	}
	return tasks
}

// WorkerStatuses returns a health and metrics snapshot per worker type.
func (c *Coordinator) WorkerStatuses() map[models.WorkerType]models.HealthReport {
	return c.registry.HealthChecks()
}

// ActiveCount returns the number of tasks currently in progress.
func (c *Coordinator) ActiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Events returns the coordinator's lifecycle event channel. The channel
// is closed by Shutdown.
func (c *Coordinator) Events() <-chan Event {
	return c.emitter.events
}

// DroppedEventCount returns the number of events dropped because the
// event channel was full.
func (c *Coordinator) DroppedEventCount() uint64 {
	return c.emitter.dropped()
}

// Shutdown stops accepting tasks, cancels queued-but-unstarted tasks,
// waits for in-flight tasks up to the grace period and stops every
// registered worker.
func (c *Coordinator) Shutdown() error {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	c.mu.Unlock()

	// Cancel queued tasks that never started.
	for _, task := range c.queue.Drain() {
		now := time.Now()
		c.mu.Lock()
		task.Status = models.TaskStatusCancelled
		task.CompletedAt = &now
		c.finishLocked(task)
		c.mu.Unlock()
		c.emitter.emit(Event{Type: EventTaskCancelled, TaskID: task.ID, Message: "cancelled at shutdown"})
	}

	if c.cron != nil {
		<-c.cron.Stop().Done()
	}

	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.cfg.ShutdownGracePeriod):
		c.logger.Warn("shutdown grace period elapsed with tasks still in flight")
	}

	if err := c.registry.StopAll(c.cfg.ShutdownGracePeriod); err != nil {
		return fmt.Errorf("stop workers: %w", err)
	}

	c.emitter.close()
	c.logger.Info("coordinator stopped (dropped events: %d)", c.emitter.dropped())
	return nil
}

// finishLocked moves a terminal task out of the active map into the
// snapshot cache and the durable store. Caller holds c.mu.
func (c *Coordinator) finishLocked(task *models.CoordinatedTask) {
	delete(c.tasks, task.ID)
	c.terminal.Add(task.ID, task)
	if c.store != nil {
		if err := c.store.SaveTask(task); err != nil {
			c.logger.Error("failed to persist task %s: %v", task.ID, err)
		}
	}
}

// healthSweep logs workers that are not active or report failures.
func (c *Coordinator) healthSweep() {
	for workerType, report := range c.registry.HealthChecks() {
		if report.Status != models.WorkerStatusActive {
			c.logger.Warn("health sweep: %s worker is %s", workerType, report.Status)
			continue
		}
		if report.Metrics.Failures > 0 {
			c.logger.Debug("health sweep: %s worker has %d failure(s), %d in flight",
				workerType, report.Metrics.Failures, report.InFlight)
		}
	}
}

// signal nudges the run loop without blocking.
func (c *Coordinator) signal() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}
