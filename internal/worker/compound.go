package worker

import (
	"context"
	"fmt"

	"github.com/phytolab/sage/pkg/models"
)

// CompoundProcessor is the molecular-property analytical unit. The real
// property prediction is an external collaborator; this implementation
// returns representative fixed results.
type CompoundProcessor struct{}

// NewCompoundProcessor creates a CompoundProcessor.
func NewCompoundProcessor() *CompoundProcessor {
	return &CompoundProcessor{}
}

// Type implements Processor.
func (p *CompoundProcessor) Type() models.WorkerType {
	return models.WorkerCompoundAnalysis
}

// Validate requires a compound name or a query to derive one from.
func (p *CompoundProcessor) Validate(input map[string]any) error {
	if compound, ok := input["compound"].(string); ok && compound != "" {
		return nil
	}
	if query, ok := input["query"].(string); ok && query != "" {
		return nil
	}
	return fmt.Errorf("missing required field %q or %q", "compound", "query")
}

// Process implements Processor.
func (p *CompoundProcessor) Process(ctx context.Context, input map[string]any) (*models.WorkerOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compound, _ := input["compound"].(string)
	if compound == "" {
		compound = "ginsenoside-rb1"
	}

	return &models.WorkerOutput{
		Result: models.ResultPayload{
			Summary: fmt.Sprintf("predicted molecular properties for %s", compound),
			Data: map[string]any{
				"compound":        compound,
				"molecular_mass":  1109.3,
				"logp":            -1.2,
				"bioavailability": 0.34,
			},
			Claims: []models.Claim{
				{
					Entity:    "ginseng",
					Attribute: "energy",
					Direction: models.DirectionIncrease,
					Statement: "predicted receptor binding is consistent with a stimulant effect",
				},
			},
			Recommendations: []models.Recommendation{
				{Category: "validation", Action: "confirm predicted bioavailability in vitro"},
			},
			EvidenceStrength: 0.8,
		},
		Confidence: 0.74,
		Metadata:   map[string]any{"model": "property-predictor"},
	}, nil
}
