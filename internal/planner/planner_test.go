package planner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/phytolab/sage/pkg/models"
)

func TestRequiredWorkersPerCategory(t *testing.T) {
	p := New(nil)

	cases := []struct {
		category models.TaskCategory
		want     []models.WorkerType
	}{
		{models.CategoryLiteratureReview, []models.WorkerType{models.WorkerLiterature}},
		{models.CategoryCrossValidation, []models.WorkerType{models.WorkerLiterature, models.WorkerCrossReference}},
		{models.CategoryDiscovery, []models.WorkerType{models.WorkerCompoundAnalysis, models.WorkerCrossReference}},
		{models.CategoryResearch, []models.WorkerType{models.WorkerLiterature, models.WorkerCompoundAnalysis, models.WorkerCrossReference}},
	}

	for _, tc := range cases {
		got, err := p.RequiredWorkers(tc.category)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.category, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: expected %d workers, got %d", tc.category, len(tc.want), len(got))
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("%s: worker %d = %s, want %s", tc.category, i, got[i], tc.want[i])
			}
		}
	}
}

func TestUnknownCategoryRejected(t *testing.T) {
	p := New(nil)

	if _, err := p.RequiredWorkers("translation"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
	if _, err := p.Generate("translation", nil, nil); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory from Generate, got %v", err)
	}
}

func TestGenerateLiteratureReview(t *testing.T) {
	p := New(nil)

	input := map[string]any{"query": "ginseng adaptogens"}
	steps, err := p.Generate(models.CategoryLiteratureReview, []models.WorkerType{models.WorkerLiterature}, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].WorkerType != models.WorkerLiterature {
		t.Errorf("expected literature worker, got %s", steps[0].WorkerType)
	}
	if len(steps[0].DependsOn) != 0 {
		t.Errorf("expected no prerequisites, got %v", steps[0].DependsOn)
	}
	if steps[0].Input["query"] != "ginseng adaptogens" {
		t.Errorf("expected task input copied into step input, got %v", steps[0].Input)
	}
}

func TestGenerateCopiesInputPerStep(t *testing.T) {
	p := New(nil)

	input := map[string]any{"query": "chamomile"}
	steps, err := p.Generate(models.CategoryCrossValidation,
		[]models.WorkerType{models.WorkerLiterature, models.WorkerCrossReference}, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps[0].Input["query"] = "mutated"
	if steps[1].Input["query"] != "chamomile" {
		t.Error("expected step inputs to be independent copies")
	}
	if input["query"] != "chamomile" {
		t.Error("expected the original input to be untouched")
	}
}

func TestGenerateCrossValidationDependency(t *testing.T) {
	p := New(nil)

	steps, err := p.Generate(models.CategoryCrossValidation,
		[]models.WorkerType{models.WorkerLiterature, models.WorkerCrossReference}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}

	crossRef := steps[1]
	if crossRef.WorkerType != models.WorkerCrossReference {
		t.Fatalf("expected cross-reference second, got %s", crossRef.WorkerType)
	}
	if len(crossRef.DependsOn) != 1 || crossRef.DependsOn[0] != steps[0].StepID {
		t.Errorf("expected cross-reference to depend on literature, got %v", crossRef.DependsOn)
	}
	if !crossRef.Optional {
		t.Error("cross-validation cross-reference failure must not abort the task")
	}
}

func TestGenerateDiscoveryOptionalStep(t *testing.T) {
	p := New(nil)

	steps, err := p.Generate(models.CategoryDiscovery,
		[]models.WorkerType{models.WorkerCompoundAnalysis, models.WorkerCrossReference}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !steps[1].Optional {
		t.Error("discovery cross-reference step must be optional")
	}
}

func TestGenerateResearchParallelSteps(t *testing.T) {
	p := New(nil)

	steps, err := p.Generate(models.CategoryResearch,
		[]models.WorkerType{models.WorkerLiterature, models.WorkerCompoundAnalysis, models.WorkerCrossReference}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if !steps[0].Parallel || !steps[1].Parallel {
		t.Error("expected literature and compound-analysis steps to be parallel")
	}
	if len(steps[2].DependsOn) != 2 {
		t.Errorf("expected cross-reference to depend on both siblings, got %v", steps[2].DependsOn)
	}
}

func TestGenerateRejectsWorkerOutsideRequiredSet(t *testing.T) {
	p := New(nil)

	_, err := p.Generate(models.CategoryResearch, []models.WorkerType{models.WorkerLiterature}, nil)
	if err == nil {
		t.Fatal("expected error for incomplete required set")
	}
}

func TestLoadFileOverridesTemplate(t *testing.T) {
	p := New(nil)

	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := `
literature-review:
  - id: lit-wide
    worker: literature
  - id: cross-check
    worker: cross-reference
    depends_on: [lit-wide]
    optional: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := p.LoadFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	workers, err := p.RequiredWorkers(models.CategoryLiteratureReview)
	if err != nil {
		t.Fatal(err)
	}
	if len(workers) != 2 {
		t.Errorf("expected 2 workers after override, got %d", len(workers))
	}

	// Untouched categories keep their defaults.
	workers, err = p.RequiredWorkers(models.CategoryDiscovery)
	if err != nil {
		t.Fatal(err)
	}
	if len(workers) != 2 {
		t.Errorf("expected discovery template untouched, got %d workers", len(workers))
	}
}

func TestLoadFileRejectsCycle(t *testing.T) {
	p := New(nil)

	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := `
research:
  - id: a
    worker: literature
    depends_on: [b]
  - id: b
    worker: cross-reference
    depends_on: [a]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := p.LoadFile(path); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestLoadFileRejectsDanglingPrerequisite(t *testing.T) {
	p := New(nil)

	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := `
discovery:
  - id: analyze
    worker: compound-analysis
    depends_on: [nonexistent]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := p.LoadFile(path); err == nil {
		t.Fatal("expected error for dangling prerequisite")
	}
}

func TestLoadFileRejectsUnknownWorkerType(t *testing.T) {
	p := New(nil)

	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := `
discovery:
  - id: analyze
    worker: alchemy
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := p.LoadFile(path); err == nil {
		t.Fatal("expected error for unknown worker type")
	}
}
