package models

import "time"

// WorkerType identifies a registered analytical unit.
type WorkerType string

const (
	// WorkerLiterature searches and ranks published literature.
	WorkerLiterature WorkerType = "literature"
	// WorkerCompoundAnalysis predicts molecular properties of compounds.
	WorkerCompoundAnalysis WorkerType = "compound-analysis"
	// WorkerCrossReference correlates findings across knowledge sources.
	WorkerCrossReference WorkerType = "cross-reference"
)

// Valid returns true if the worker type is a known value.
func (t WorkerType) Valid() bool {
	switch t {
	case WorkerLiterature, WorkerCompoundAnalysis, WorkerCrossReference:
		return true
	default:
		return false
	}
}

// Provenance returns the evidence category contributed by this worker type.
func (t WorkerType) Provenance() string {
	switch t {
	case WorkerLiterature:
		return "scientific"
	case WorkerCompoundAnalysis:
		return "computational"
	case WorkerCrossReference:
		return "traditional"
	default:
		return "unknown"
	}
}

// WorkerStatus represents the lifecycle state of a worker.
type WorkerStatus string

const (
	// WorkerStatusActive indicates the worker accepts invocations.
	WorkerStatusActive WorkerStatus = "active"
	// WorkerStatusInactive indicates the worker is stopped.
	WorkerStatusInactive WorkerStatus = "inactive"
	// WorkerStatusTraining indicates the worker is being retrained.
	WorkerStatusTraining WorkerStatus = "training"
	// WorkerStatusError indicates the worker is unhealthy.
	WorkerStatusError WorkerStatus = "error"
	// WorkerStatusMaintenance indicates the worker is draining in-flight work.
	WorkerStatusMaintenance WorkerStatus = "maintenance"
)

// Valid returns true if the status is a known value.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerStatusActive, WorkerStatusInactive, WorkerStatusTraining,
		WorkerStatusError, WorkerStatusMaintenance:
		return true
	default:
		return false
	}
}

// PrerequisitesKey is the step-input key under which the coordinator merges
// prerequisite outputs before invoking a worker. The value is a
// map[string]any from step ID to *WorkerOutput, or to a missing marker when
// an optional prerequisite resolved without output.
const PrerequisitesKey = "prerequisites"

// MissingMarker returns the value stored under PrerequisitesKey for a
// prerequisite that terminally resolved without producing output.
func MissingMarker() map[string]any {
	return map[string]any{"missing": true}
}

// IsMissingMarker reports whether a merged prerequisite value is the
// missing marker rather than a real output.
func IsMissingMarker(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	missing, ok := m["missing"].(bool)
	return ok && missing
}

// ClaimDirection is the directional effect a worker asserts for an entity
// attribute. Opposing directions on the same entity and attribute are a
// conflict.
type ClaimDirection string

const (
	// DirectionIncrease asserts the entity raises the attribute.
	DirectionIncrease ClaimDirection = "increase"
	// DirectionDecrease asserts the entity lowers the attribute.
	DirectionDecrease ClaimDirection = "decrease"
	// DirectionNeutral asserts no directional effect.
	DirectionNeutral ClaimDirection = "neutral"
)

// Opposes reports whether two directions disagree.
func (d ClaimDirection) Opposes(other ClaimDirection) bool {
	return (d == DirectionIncrease && other == DirectionDecrease) ||
		(d == DirectionDecrease && other == DirectionIncrease)
}

// Claim is one assertion a worker makes about a named entity.
type Claim struct {
	// Entity is the named subject, e.g. a herb or compound.
	Entity string `json:"entity"`
	// Attribute is the property the claim is about.
	Attribute string `json:"attribute"`
	// Direction is the asserted effect on the attribute.
	Direction ClaimDirection `json:"direction"`
	// Statement is the human-readable form of the claim.
	Statement string `json:"statement,omitempty"`
}

// Recommendation is a follow-up action suggested by a worker.
type Recommendation struct {
	// Category groups recommendations; synthesis deduplicates by it.
	Category string `json:"category"`
	// Action describes the suggested follow-up.
	Action string `json:"action"`
}

// ResultPayload is the structured body of a worker output.
type ResultPayload struct {
	// Summary is a one-line description of what the worker found.
	Summary string `json:"summary"`
	// Data holds worker-specific detail.
	Data map[string]any `json:"data,omitempty"`
	// Claims are the assertions this output contributes to synthesis.
	Claims []Claim `json:"claims,omitempty"`
	// Recommendations are suggested follow-ups.
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	// EvidenceStrength weights this output in the reliability score.
	// Zero means unspecified and is treated as 1.0.
	EvidenceStrength float64 `json:"evidence_strength,omitempty"`
}

// WorkerOutput is produced exactly once per successfully completed step.
type WorkerOutput struct {
	// TaskID is the coordinated task this output belongs to.
	TaskID string `json:"task_id"`
	// Result is the structured payload.
	Result ResultPayload `json:"result"`
	// Confidence is the worker's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`
	// Metadata holds execution annotations.
	Metadata map[string]any `json:"metadata,omitempty"`
	// ExecutionTime is how long the invocation took.
	ExecutionTime time.Duration `json:"execution_time"`
}

// Clone returns a deep copy of the output.
func (o *WorkerOutput) Clone() *WorkerOutput {
	if o == nil {
		return nil
	}
	c := *o
	c.Metadata = cloneMap(o.Metadata)
	c.Result.Data = cloneMap(o.Result.Data)
	c.Result.Claims = append([]Claim(nil), o.Result.Claims...)
	c.Result.Recommendations = append([]Recommendation(nil), o.Result.Recommendations...)
	return &c
}

// WorkerMetrics accumulates per-worker invocation statistics.
type WorkerMetrics struct {
	// TotalInvocations counts every invocation attempt sequence.
	TotalInvocations int64 `json:"total_invocations"`
	// Successes counts invocations that produced an output.
	Successes int64 `json:"successes"`
	// Failures counts invocations that exhausted retries.
	Failures int64 `json:"failures"`
	// AvgExecutionTime is the running average of successful execution times.
	AvgExecutionTime time.Duration `json:"avg_execution_time"`
	// Accuracy is updated only when ground-truth feedback is available.
	Accuracy float64 `json:"accuracy"`
	// LastExecution is when the worker last finished an invocation.
	LastExecution time.Time `json:"last_execution,omitzero"`
}

// HealthReport is a point-in-time snapshot of a worker's health.
type HealthReport struct {
	// WorkerType identifies the worker.
	WorkerType WorkerType `json:"worker_type"`
	// Status is the worker's lifecycle state.
	Status WorkerStatus `json:"status"`
	// InFlight is the number of invocations currently executing.
	InFlight int `json:"in_flight"`
	// MaxConcurrent is the worker's own concurrency ceiling.
	MaxConcurrent int `json:"max_concurrent"`
	// SinceLastExecution is the time elapsed since the last invocation
	// finished, zero if the worker has never executed.
	SinceLastExecution time.Duration `json:"since_last_execution"`
	// Metrics is a copy of the worker's cumulative metrics.
	Metrics WorkerMetrics `json:"metrics"`
}
