package worker

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/pkg/models"
)

// Registry is the fixed lookup from worker type to runtime. Workers are
// registered at startup and not created or destroyed during normal
// operation.
type Registry struct {
	mu       sync.RWMutex
	runtimes map[models.WorkerType]*Runtime
	logger   logging.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{
		runtimes: make(map[models.WorkerType]*Runtime),
		logger:   logging.OrNop(logger),
	}
}

// Register adds a runtime to the registry. Registering the same worker
// type twice is an error.
func (reg *Registry) Register(rt *Runtime) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.runtimes[rt.Type()]; exists {
		return fmt.Errorf("worker type %q already registered", rt.Type())
	}
	reg.runtimes[rt.Type()] = rt
	reg.logger.Info("registered %s worker (max concurrent %d)", rt.Type(), rt.MaxConcurrent())
	return nil
}

// Get returns the runtime for a worker type.
func (reg *Registry) Get(workerType models.WorkerType) (*Runtime, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rt, ok := reg.runtimes[workerType]
	if !ok {
		return nil, fmt.Errorf("%w: no %q worker registered", ErrWorkerUnavailable, workerType)
	}
	return rt, nil
}

// Types returns the registered worker types.
func (reg *Registry) Types() []models.WorkerType {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	types := make([]models.WorkerType, 0, len(reg.runtimes))
	for t := range reg.runtimes {
		types = append(types, t)
	}
	return types
}

// StartAll starts every registered worker.
func (reg *Registry) StartAll() error {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var g errgroup.Group
	for _, rt := range reg.runtimes {
		g.Go(rt.Start)
	}
	return g.Wait()
}

// StopAll stops every registered worker, each with the given grace period.
func (reg *Registry) StopAll(grace time.Duration) error {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var g errgroup.Group
	for _, rt := range reg.runtimes {
		g.Go(func() error { return rt.Stop(grace) })
	}
	return g.Wait()
}

// HealthChecks returns a health report for every registered worker.
func (reg *Registry) HealthChecks() map[models.WorkerType]models.HealthReport {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	reports := make(map[models.WorkerType]models.HealthReport, len(reg.runtimes))
	for t, rt := range reg.runtimes {
		reports[t] = rt.HealthCheck()
	}
	return reports
}
