package worker

import (
	"context"
	"fmt"

	"github.com/phytolab/sage/pkg/models"
)

// CrossRefProcessor correlates prerequisite findings against traditional
// knowledge sources. The correlation logic itself is an external
// collaborator; this implementation reads its prerequisites and returns
// representative fixed results.
type CrossRefProcessor struct{}

// NewCrossRefProcessor creates a CrossRefProcessor.
func NewCrossRefProcessor() *CrossRefProcessor {
	return &CrossRefProcessor{}
}

// Type implements Processor.
func (p *CrossRefProcessor) Type() models.WorkerType {
	return models.WorkerCrossReference
}

// Validate accepts any input: the step is useful even when every
// prerequisite resolved without output.
func (p *CrossRefProcessor) Validate(input map[string]any) error {
	return nil
}

// Process implements Processor.
func (p *CrossRefProcessor) Process(ctx context.Context, input map[string]any) (*models.WorkerOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sources := 0
	missing := 0
	if prereqs, ok := input[models.PrerequisitesKey].(map[string]any); ok {
		for _, v := range prereqs {
			if models.IsMissingMarker(v) {
				missing++
				continue
			}
			if _, ok := v.(*models.WorkerOutput); ok {
				sources++
			}
		}
	}

	return &models.WorkerOutput{
		Result: models.ResultPayload{
			Summary: fmt.Sprintf("correlated %d upstream source(s) against traditional records", sources),
			Data: map[string]any{
				"correlated_sources": sources,
				"missing_sources":    missing,
				"traditional_uses":   []string{"tonic", "restorative"},
			},
			Claims: []models.Claim{
				{
					Entity:    "ginseng",
					Attribute: "energy",
					Direction: models.DirectionIncrease,
					Statement: "traditional records agree on a restorative effect",
				},
			},
			Recommendations: []models.Recommendation{
				{Category: "cross-validation", Action: "compare regional preparations for consistency"},
			},
			EvidenceStrength: 0.6,
		},
		Confidence: 0.68,
		Metadata:   map[string]any{"knowledge_base": "traditional-records"},
	}, nil
}
