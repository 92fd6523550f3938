package main

import (
	"testing"

	"github.com/phytolab/sage/internal/config"
	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/pkg/models"
)

func TestParsePriority(t *testing.T) {
	cases := []struct {
		in      string
		want    models.TaskPriority
		wantErr bool
	}{
		{"", models.PriorityMedium, false},
		{"low", models.PriorityLow, false},
		{"medium", models.PriorityMedium, false},
		{"high", models.PriorityHigh, false},
		{"urgent", models.PriorityUrgent, false},
		{"extreme", "", true},
	}

	for _, tc := range cases {
		got, err := parsePriority(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parsePriority(%q): expected an error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePriority(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parsePriority(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestBuildCoordinatorRegistersAllWorkers(t *testing.T) {
	cfg := config.Default()

	coord, pl, cleanup, err := buildCoordinator(cfg, logging.Nop())
	if err != nil {
		t.Fatalf("buildCoordinator: %v", err)
	}
	defer cleanup()

	statuses := coord.WorkerStatuses()
	for _, workerType := range []models.WorkerType{models.WorkerLiterature, models.WorkerCompoundAnalysis, models.WorkerCrossReference} {
		if _, ok := statuses[workerType]; !ok {
			t.Errorf("expected %s worker registered", workerType)
		}
	}
	if len(pl.Categories()) != 4 {
		t.Errorf("expected 4 built-in categories, got %d", len(pl.Categories()))
	}
}
