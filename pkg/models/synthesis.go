package models

import "time"

// Finding is one ranked claim in the synthesized result.
type Finding struct {
	// StepID is the workflow step that contributed this finding.
	StepID string `json:"step_id"`
	// WorkerType is the worker that produced it.
	WorkerType WorkerType `json:"worker_type"`
	// Entity is the named subject of the claim.
	Entity string `json:"entity"`
	// Attribute is the property the claim is about.
	Attribute string `json:"attribute"`
	// Direction is the asserted effect.
	Direction ClaimDirection `json:"direction"`
	// Statement is the human-readable claim.
	Statement string `json:"statement,omitempty"`
	// Confidence is the contributing output's confidence.
	Confidence float64 `json:"confidence"`
}

// Evidence tags one worker output with its provenance category.
type Evidence struct {
	// StepID is the contributing workflow step.
	StepID string `json:"step_id"`
	// WorkerType is the worker that produced the output.
	WorkerType WorkerType `json:"worker_type"`
	// Provenance is the evidence category: traditional, scientific or
	// computational, derived from the worker type.
	Provenance string `json:"provenance"`
	// Summary is the output's summary line.
	Summary string `json:"summary"`
	// Confidence is the output's confidence.
	Confidence float64 `json:"confidence"`
	// Strength is the evidence-strength weight applied in scoring.
	Strength float64 `json:"strength"`
}

// ConflictSeverity grades how hard a conflict is to resolve.
type ConflictSeverity string

const (
	// SeverityHigh marks an evenly-matched disagreement.
	SeverityHigh ConflictSeverity = "high"
	// SeverityMedium marks a disagreement with a moderate confidence gap.
	SeverityMedium ConflictSeverity = "medium"
	// SeverityLow marks a disagreement where one side clearly dominates.
	SeverityLow ConflictSeverity = "low"
)

// Conflict records two outputs asserting opposing effects for the same
// entity attribute.
type Conflict struct {
	// Entity is the disputed subject.
	Entity string `json:"entity"`
	// Attribute is the disputed property.
	Attribute string `json:"attribute"`
	// StepA and StepB identify the disagreeing steps.
	StepA string `json:"step_a"`
	StepB string `json:"step_b"`
	// WorkerA and WorkerB identify the disagreeing workers.
	WorkerA WorkerType `json:"worker_a"`
	WorkerB WorkerType `json:"worker_b"`
	// DirectionA and DirectionB are the opposing assertions.
	DirectionA ClaimDirection `json:"direction_a"`
	DirectionB ClaimDirection `json:"direction_b"`
	// ConfidenceGap is the absolute difference between the two outputs'
	// confidences.
	ConfidenceGap float64 `json:"confidence_gap"`
	// Severity is derived from the confidence gap.
	Severity ConflictSeverity `json:"severity"`
}

// SynthesizedResult is the merged, scored outcome of a completed workflow.
type SynthesizedResult struct {
	// PrimaryFindings are the top claims ranked by confidence.
	PrimaryFindings []Finding `json:"primary_findings"`
	// SupportingEvidence has one entry per worker output.
	SupportingEvidence []Evidence `json:"supporting_evidence"`
	// Recommendations are follow-ups deduplicated by category.
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	// Conflicts are unresolved disagreements between outputs.
	Conflicts []Conflict `json:"conflicts,omitempty"`
	// Gaps lists step IDs that terminally resolved without output.
	Gaps []string `json:"gaps,omitempty"`
	// ReliabilityScore is the evidence-weighted mean confidence,
	// penalized by unresolved conflicts.
	ReliabilityScore float64 `json:"reliability_score"`
	// QualityScore combines completeness, mean confidence and the
	// conflict penalty.
	QualityScore float64 `json:"quality_score"`
	// GeneratedAt is when synthesis ran.
	GeneratedAt time.Time `json:"generated_at"`
}
