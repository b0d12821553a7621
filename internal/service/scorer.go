package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// CandidateScorer computes a match score per condition given the patient's
// symptom set. It is pure: no I/O, no mutation of the snapshot, identical
// output for identical input.
//
// Ranking policy: candidates are ordered by raw score descending — more
// matched, more severe evidence wins — with ties broken by catalog insertion
// order through a stable sort. The normalized percentage is display-only.
type CandidateScorer struct {
	logger  *logrus.Logger
	weights domain.ScoringConfig
}

// NewCandidateScorer creates a new candidate scorer with the given weighting policy.
func NewCandidateScorer(logger *logrus.Logger, weights domain.ScoringConfig) *CandidateScorer {
	return &CandidateScorer{
		logger:  logger,
		weights: weights,
	}
}

// Score ranks the snapshot's conditions against the selected symptoms.
// Conditions with no symptom overlap are excluded entirely rather than
// returned with a zero score. An empty selection yields an empty list,
// not an error. limit <= 0 falls back to the configured DefaultLimit;
// truncation is disabled only when that is unset too.
func (s *CandidateScorer) Score(
	snapshot *domain.RuleSnapshot,
	patient domain.PatientContext,
	selected []domain.SelectedSymptom,
	followUp []domain.FollowUpAnswer,
	limit int,
) []domain.ScoredCandidate {
	if len(selected) == 0 {
		return nil
	}

	if limit <= 0 {
		limit = s.weights.DefaultLimit
	}

	severityByID := make(map[string]domain.Severity, len(selected))
	for _, sel := range selected {
		severityByID[sel.SymptomID] = sel.Severity
	}

	adjustments := s.followUpAdjustments(snapshot, followUp)

	candidates := make([]domain.ScoredCandidate, 0, len(snapshot.Conditions))
	for _, condition := range snapshot.Conditions {
		matched := make([]string, 0, len(condition.SymptomIDs))
		base := 0.0
		for _, symptomID := range condition.SymptomIDs {
			sev, ok := severityByID[symptomID]
			if !ok {
				continue
			}
			matched = append(matched, symptomID)
			base += s.weights.Weight(sev)
		}
		if len(matched) == 0 {
			continue
		}

		raw := base + s.clampAdjustment(adjustments[condition.ID], base)

		if factor := s.amplificationFactor(snapshot, patient, condition, severityByID); factor > 1.0 {
			raw *= factor
		}

		maxPossible := float64(len(condition.SymptomIDs)) * s.weights.MaxWeight()
		pct := 0.0
		if maxPossible > 0 {
			pct = raw / maxPossible * 100
		}
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}

		candidates = append(candidates, domain.ScoredCandidate{
			Condition:            condition,
			RawScore:             raw,
			NormalizedPercentage: pct,
			MatchedSymptomIDs:    matched,
		})
	}

	// Stable sort keeps catalog insertion order on ties, which makes the
	// ranking reproducible for identical input.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RawScore > candidates[j].RawScore
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	s.logger.WithFields(logrus.Fields{
		"selected_symptoms": len(selected),
		"candidates":        len(candidates),
		"limit":             limit,
	}).Debug("Completed candidate scoring")

	return candidates
}

// followUpAdjustments aggregates the signed clarifier weights per condition.
// An answer counts only when it matches the question's expected answer.
func (s *CandidateScorer) followUpAdjustments(snapshot *domain.RuleSnapshot, answers []domain.FollowUpAnswer) map[string]float64 {
	if len(answers) == 0 || len(snapshot.FollowUps) == 0 {
		return nil
	}

	type answerKey struct {
		symptomID string
		index     int
	}
	values := make(map[answerKey]string, len(answers))
	for _, a := range answers {
		values[answerKey{a.SymptomID, a.Index}] = a.Value
	}

	adjustments := make(map[string]float64)
	for _, q := range snapshot.FollowUps {
		value, ok := values[answerKey{q.SymptomID, q.Index}]
		if !ok {
			continue
		}
		if !answersMatch(value, q.ExpectedAnswer) {
			continue
		}
		adjustments[q.ConditionID] += q.Weight
	}
	return adjustments
}

// clampAdjustment bounds the net follow-up adjustment so bonuses never let a
// poorly matched condition outrank a strongly matched one.
func (s *CandidateScorer) clampAdjustment(adjustment, base float64) float64 {
	bound := s.weights.FollowUpCapRatio * base
	if bound <= 0 {
		return 0
	}
	if adjustment > bound {
		return bound
	}
	if adjustment < -bound {
		return -bound
	}
	return adjustment
}

// amplificationFactor returns the chronic-disease risk multiplier for a
// condition, or 1.0 when no correlation fires. A correlation fires when the
// patient reports the chronic disease, the condition is listed as related,
// and at least one symptom-to-watch was selected.
func (s *CandidateScorer) amplificationFactor(
	snapshot *domain.RuleSnapshot,
	patient domain.PatientContext,
	condition domain.Condition,
	severityByID map[string]domain.Severity,
) float64 {
	factor := 1.0
	for _, corr := range snapshot.Correlations {
		if !patient.HasChronicDisease(corr.ChronicDiseaseID) {
			continue
		}
		if !containsString(corr.RelatedConditionIDs, condition.ID) {
			continue
		}
		watched := false
		for _, symptomID := range corr.SymptomsToWatchIDs {
			if _, ok := severityByID[symptomID]; ok {
				watched = true
				break
			}
		}
		if !watched {
			continue
		}
		if corr.RiskIncreaseFactor > factor {
			factor = corr.RiskIncreaseFactor
		}
	}
	return factor
}

// answersMatch compares a normalized patient answer to the expected one.
// Boolean affirmatives are folded so "true" and "yes" are interchangeable.
func answersMatch(value, expected string) bool {
	return normalizeAnswer(value) == normalizeAnswer(expected)
}

func normalizeAnswer(v string) string {
	switch v {
	case "yes", "y", "true":
		return "true"
	case "no", "n", "false":
		return "false"
	default:
		return v
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
