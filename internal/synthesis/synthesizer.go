// Package synthesis merges heterogeneous worker outputs into one ranked,
// confidence-scored result. The synthesizer is a pure function of the
// collected results; it owns no state beyond its tuning parameters.
package synthesis

import (
	"sort"
	"time"

	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/pkg/models"
)

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithConflictPenalty sets the per-conflict score penalty weight.
func WithConflictPenalty(penalty float64) Option {
	return func(s *Synthesizer) {
		s.conflictPenalty = penalty
	}
}

// WithMaxFindings caps the number of primary findings.
func WithMaxFindings(n int) Option {
	return func(s *Synthesizer) {
		s.maxFindings = n
	}
}

// WithLogger sets the synthesizer's logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = logging.OrNop(logger)
	}
}

// Synthesizer combines per-step outputs into a SynthesizedResult.
type Synthesizer struct {
	conflictPenalty float64
	maxFindings     int
	logger          logging.Logger
}

// New creates a Synthesizer with default tuning.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		conflictPenalty: 0.15,
		maxFindings:     10,
		logger:          logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Combine merges the collected step results. Results arrive in completion
// order; entries with a nil output are optional steps that failed and are
// recorded as gaps. Combine never fails: empty input yields a minimal
// result with zero scores.
func (s *Synthesizer) Combine(results []models.StepResult, required []models.WorkerType) *models.SynthesizedResult {
	out := &models.SynthesizedResult{
		PrimaryFindings:    []models.Finding{},
		SupportingEvidence: []models.Evidence{},
		GeneratedAt:        time.Now(),
	}

	var produced []models.StepResult
	for _, r := range results {
		if r.Output == nil {
			out.Gaps = append(out.Gaps, r.StepID)
			continue
		}
		produced = append(produced, r)
	}

	if len(produced) == 0 {
		s.logger.Debug("synthesis over empty result set")
		return out
	}

	out.PrimaryFindings = s.rankFindings(produced)
	out.SupportingEvidence = collectEvidence(produced)
	out.Recommendations = dedupeRecommendations(produced)
	out.Conflicts = detectConflicts(produced)
	out.ReliabilityScore = s.reliabilityScore(produced, len(out.Conflicts))
	out.QualityScore = s.qualityScore(produced, required, len(out.Conflicts))

	s.logger.Debug("synthesized %d finding(s), %d conflict(s), reliability %.2f, quality %.2f",
		len(out.PrimaryFindings), len(out.Conflicts), out.ReliabilityScore, out.QualityScore)
	return out
}

// rankFindings flattens all claims and ranks them by the contributing
// output's confidence, highest first.
func (s *Synthesizer) rankFindings(produced []models.StepResult) []models.Finding {
	var findings []models.Finding
	for _, r := range produced {
		for _, claim := range r.Output.Result.Claims {
			findings = append(findings, models.Finding{
				StepID:     r.StepID,
				WorkerType: r.WorkerType,
				Entity:     claim.Entity,
				Attribute:  claim.Attribute,
				Direction:  claim.Direction,
				Statement:  claim.Statement,
				Confidence: r.Output.Confidence,
			})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Confidence > findings[j].Confidence
	})
	if s.maxFindings > 0 && len(findings) > s.maxFindings {
		findings = findings[:s.maxFindings]
	}
	if findings == nil {
		findings = []models.Finding{}
	}
	return findings
}

// collectEvidence tags each output with its provenance category.
func collectEvidence(produced []models.StepResult) []models.Evidence {
	evidence := make([]models.Evidence, 0, len(produced))
	for _, r := range produced {
		evidence = append(evidence, models.Evidence{
			StepID:     r.StepID,
			WorkerType: r.WorkerType,
			Provenance: r.WorkerType.Provenance(),
			Summary:    r.Output.Result.Summary,
			Confidence: r.Output.Confidence,
			Strength:   evidenceStrength(r.Output),
		})
	}
	return evidence
}

// dedupeRecommendations keeps the first recommendation per category, in
// completion order.
func dedupeRecommendations(produced []models.StepResult) []models.Recommendation {
	seen := make(map[string]bool)
	var recs []models.Recommendation
	for _, r := range produced {
		for _, rec := range r.Output.Result.Recommendations {
			if seen[rec.Category] {
				continue
			}
			seen[rec.Category] = true
			recs = append(recs, rec)
		}
	}
	return recs
}

// detectConflicts finds pairs of outputs asserting opposing directions for
// the same entity attribute.
func detectConflicts(produced []models.StepResult) []models.Conflict {
	type claimRef struct {
		stepID     string
		workerType models.WorkerType
		confidence float64
		claim      models.Claim
	}

	byKey := make(map[string][]claimRef)
	var order []string
	for _, r := range produced {
		for _, claim := range r.Output.Result.Claims {
			key := claim.Entity + "\x00" + claim.Attribute
			if _, ok := byKey[key]; !ok {
				order = append(order, key)
			}
			byKey[key] = append(byKey[key], claimRef{
				stepID:     r.StepID,
				workerType: r.WorkerType,
				confidence: r.Output.Confidence,
				claim:      claim,
			})
		}
	}

	var conflicts []models.Conflict
	for _, key := range order {
		refs := byKey[key]
		for i := 0; i < len(refs); i++ {
			for j := i + 1; j < len(refs); j++ {
				a, b := refs[i], refs[j]
				if !a.claim.Direction.Opposes(b.claim.Direction) {
					continue
				}
				gap := a.confidence - b.confidence
				if gap < 0 {
					gap = -gap
				}
				conflicts = append(conflicts, models.Conflict{
					Entity:        a.claim.Entity,
					Attribute:     a.claim.Attribute,
					StepA:         a.stepID,
					StepB:         b.stepID,
					WorkerA:       a.workerType,
					WorkerB:       b.workerType,
					DirectionA:    a.claim.Direction,
					DirectionB:    b.claim.Direction,
					ConfidenceGap: gap,
					Severity:      severityForGap(gap),
				})
			}
		}
	}
	return conflicts
}

// severityForGap grades a conflict by its confidence gap. An evenly
// matched disagreement is the hardest to resolve.
func severityForGap(gap float64) models.ConflictSeverity {
	switch {
	case gap <= 0.1:
		return models.SeverityHigh
	case gap <= 0.3:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// reliabilityScore is the evidence-strength-weighted mean confidence,
// penalized proportionally to the number of unresolved conflicts.
func (s *Synthesizer) reliabilityScore(produced []models.StepResult, conflicts int) float64 {
	var weightedSum, weightTotal float64
	for _, r := range produced {
		strength := evidenceStrength(r.Output)
		weightedSum += r.Output.Confidence * strength
		weightTotal += strength
	}
	if weightTotal == 0 {
		return 0
	}
	score := weightedSum / weightTotal
	score /= 1 + s.conflictPenalty*float64(conflicts)
	return clamp01(score)
}

// qualityScore combines completeness, mean confidence and the conflict
// penalty.
func (s *Synthesizer) qualityScore(produced []models.StepResult, required []models.WorkerType, conflicts int) float64 {
	var confSum float64
	contributed := make(map[models.WorkerType]bool)
	for _, r := range produced {
		confSum += r.Output.Confidence
		contributed[r.WorkerType] = true
	}
	meanConf := confSum / float64(len(produced))

	completeness := 1.0
	if len(required) > 0 {
		covered := 0
		for _, w := range required {
			if contributed[w] {
				covered++
			}
		}
		completeness = float64(covered) / float64(len(required))
	}

	penalty := s.conflictPenalty * float64(conflicts)
	if penalty > 1 {
		penalty = 1
	}
	return clamp01(0.4*completeness + 0.4*meanConf + 0.2*(1-penalty))
}

// evidenceStrength returns the declared evidence strength, defaulting to 1.
func evidenceStrength(output *models.WorkerOutput) float64 {
	if output.Result.EvidenceStrength > 0 {
		return output.Result.EvidenceStrength
	}
	return 1.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
