package worker

import (
	"context"
	"fmt"

	"github.com/phytolab/sage/pkg/models"
)

// LiteratureProcessor is the literature-search analytical unit. The
// ranking heuristics live outside this repository; this implementation
// returns representative fixed results so the coordination engine can be
// exercised end to end.
type LiteratureProcessor struct{}

// NewLiteratureProcessor creates a LiteratureProcessor.
func NewLiteratureProcessor() *LiteratureProcessor {
	return &LiteratureProcessor{}
}

// Type implements Processor.
func (p *LiteratureProcessor) Type() models.WorkerType {
	return models.WorkerLiterature
}

// Validate requires a non-empty query string.
func (p *LiteratureProcessor) Validate(input map[string]any) error {
	query, ok := input["query"].(string)
	if !ok || query == "" {
		return fmt.Errorf("missing required field %q", "query")
	}
	return nil
}

// Process implements Processor.
func (p *LiteratureProcessor) Process(ctx context.Context, input map[string]any) (*models.WorkerOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query, _ := input["query"].(string)

	return &models.WorkerOutput{
		Result: models.ResultPayload{
			Summary: fmt.Sprintf("ranked 3 publications for %q", query),
			Data: map[string]any{
				"papers": []map[string]any{
					{"title": "Ginsenosides and adaptogenic response", "year": 2019, "relevance": 0.91},
					{"title": "A systematic review of Panax ginseng trials", "year": 2021, "relevance": 0.84},
					{"title": "Herbal interventions for fatigue", "year": 2017, "relevance": 0.62},
				},
			},
			Claims: []models.Claim{
				{
					Entity:    "ginseng",
					Attribute: "energy",
					Direction: models.DirectionIncrease,
					Statement: "published trials report increased energy levels",
				},
			},
			Recommendations: []models.Recommendation{
				{Category: "further-reading", Action: "review the 2021 systematic review for dosage ranges"},
			},
			EvidenceStrength: 1.0,
		},
		Confidence: 0.82,
		Metadata:   map[string]any{"source": "literature-index"},
	}, nil
}
