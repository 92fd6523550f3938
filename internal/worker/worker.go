// Package worker provides the uniform execution contract every analytical
// unit is reached through: input validation, timeout enforcement, retry
// with exponential backoff, metrics and lifecycle management.
package worker

import (
	"context"

	"github.com/phytolab/sage/pkg/models"
)

// Processor is the contract a concrete analytical unit implements. The
// Runtime wraps a Processor with the cross-cutting behavior (timeout,
// retry, metrics, concurrency guard) so units stay free of it.
type Processor interface {
	// Type identifies the worker type this processor serves.
	Type() models.WorkerType
	// Validate fails fast when required fields are missing or malformed.
	Validate(input map[string]any) error
	// Process runs the unit's analysis. Cancellation is cooperative: the
	// processor is expected to observe ctx, but the runtime proceeds as
	// failed on timeout regardless.
	Process(ctx context.Context, input map[string]any) (*models.WorkerOutput, error)
}

// PostProcessor is optionally implemented by processors that decorate
// their output after a successful invocation. The default is identity.
type PostProcessor interface {
	PostProcess(output *models.WorkerOutput) error
}

// PrerequisiteOutput extracts a prerequisite's merged output from a step
// input. The second return is false when the prerequisite is absent or
// resolved without output (missing marker).
func PrerequisiteOutput(input map[string]any, stepID string) (*models.WorkerOutput, bool) {
	prereqs, ok := input[models.PrerequisitesKey].(map[string]any)
	if !ok {
		return nil, false
	}
	out, ok := prereqs[stepID].(*models.WorkerOutput)
	if !ok || out == nil {
		return nil, false
	}
	return out, true
}
