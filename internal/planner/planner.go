// Package planner turns a task category into a dependency-annotated plan
// of worker invocations. Templates are static: the planner never inspects
// live worker state.
package planner

import (
	"errors"
	"fmt"
	"sync"

	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/pkg/models"
)

// ErrUnknownCategory indicates a category outside the closed set. Tasks
// with unknown categories are rejected before they are queued.
var ErrUnknownCategory = errors.New("unknown task category")

// ErrCycleDetected indicates a circular prerequisite in a template.
var ErrCycleDetected = errors.New("circular step dependency detected")

// StepTemplate describes one step of a workflow template.
type StepTemplate struct {
	// ID is the step identifier, unique within the template.
	ID string `yaml:"id"`
	// Worker is the worker type that executes the step.
	Worker models.WorkerType `yaml:"worker"`
	// DependsOn lists prerequisite step IDs.
	DependsOn []string `yaml:"depends_on,omitempty"`
	// Parallel allows the step to run alongside sibling steps.
	Parallel bool `yaml:"parallel,omitempty"`
	// Optional marks the step's failure as non-fatal.
	Optional bool `yaml:"optional,omitempty"`
}

// Template is the ordered step list for one category.
type Template []StepTemplate

// Planner maps categories to workflow templates.
type Planner struct {
	mu        sync.RWMutex
	templates map[models.TaskCategory]Template
	logger    logging.Logger
}

// New creates a Planner with the built-in templates.
func New(logger logging.Logger) *Planner {
	return &Planner{
		templates: defaultTemplates(),
		logger:    logging.OrNop(logger),
	}
}

// Categories returns the categories the planner knows about.
func (p *Planner) Categories() []models.TaskCategory {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cats := make([]models.TaskCategory, 0, len(p.templates))
	for c := range p.templates {
		cats = append(cats, c)
	}
	return cats
}

// RequiredWorkers returns the set of worker types the category's template
// uses, in template order.
func (p *Planner) RequiredWorkers(category models.TaskCategory) ([]models.WorkerType, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tmpl, ok := p.templates[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	seen := make(map[models.WorkerType]bool)
	var workers []models.WorkerType
	for _, st := range tmpl {
		if !seen[st.Worker] {
			seen[st.Worker] = true
			workers = append(workers, st.Worker)
		}
	}
	return workers, nil
}

// Generate produces the ordered workflow for a category. Each step's input
// starts as a copy of the task input; prerequisite outputs are merged in by
// the coordinator at execution time. The required set must cover every
// worker type the template references.
func (p *Planner) Generate(category models.TaskCategory, required []models.WorkerType, input map[string]any) ([]models.WorkflowStep, error) {
	p.mu.RLock()
	tmpl, ok := p.templates[category]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	allowed := make(map[models.WorkerType]bool, len(required))
	for _, w := range required {
		allowed[w] = true
	}

	steps := make([]models.WorkflowStep, 0, len(tmpl))
	for _, st := range tmpl {
		if !allowed[st.Worker] {
			return nil, fmt.Errorf("template %q references worker %q outside required set", category, st.Worker)
		}
		stepInput := make(map[string]any, len(input))
		for k, v := range input {
			stepInput[k] = v
		}
		steps = append(steps, models.WorkflowStep{
			StepID:     st.ID,
			WorkerType: st.Worker,
			Input:      stepInput,
			DependsOn:  append([]string(nil), st.DependsOn...),
			Parallel:   st.Parallel,
			Optional:   st.Optional,
		})
	}
	return steps, nil
}

// validateTemplate checks that step IDs are unique, prerequisites exist,
// worker types are known and the prerequisite graph is acyclic.
func validateTemplate(category models.TaskCategory, tmpl Template) error {
	if len(tmpl) == 0 {
		return fmt.Errorf("template %q has no steps", category)
	}

	ids := make(map[string]bool, len(tmpl))
	for _, st := range tmpl {
		if st.ID == "" {
			return fmt.Errorf("template %q has a step with an empty id", category)
		}
		if ids[st.ID] {
			return fmt.Errorf("template %q has duplicate step id %q", category, st.ID)
		}
		if !st.Worker.Valid() {
			return fmt.Errorf("template %q step %q uses unknown worker type %q", category, st.ID, st.Worker)
		}
		ids[st.ID] = true
	}

	edges := make(map[string][]string, len(tmpl))
	for _, st := range tmpl {
		for _, dep := range st.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("template %q step %q depends on unknown step %q", category, st.ID, dep)
			}
			edges[st.ID] = append(edges[st.ID], dep)
		}
	}

	if hasCycle(ids, edges) {
		return fmt.Errorf("template %q: %w", category, ErrCycleDetected)
	}
	return nil
}

// hasCycle runs a depth-first search with coloring to find back edges.
func hasCycle(ids map[string]bool, edges map[string][]string) bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(ids))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range edges[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range ids {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}
