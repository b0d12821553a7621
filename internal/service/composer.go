package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// ResultComposer assembles scorer, classifier and filter outputs into the
// display-ready DiagnosisResult. It performs no scoring of its own, which
// keeps scoring and classification independently testable.
type ResultComposer struct {
	logger *logrus.Logger
	filter *ContraindicationFilter
}

// NewResultComposer creates a new result composer.
func NewResultComposer(logger *logrus.Logger, filter *ContraindicationFilter) *ResultComposer {
	return &ResultComposer{
		logger: logger,
		filter: filter,
	}
}

// Compose merges the ranked candidates, urgency tier and patient context into
// the final result. An empty candidate list becomes a first-class no-match
// outcome. When contraindication filtering empties the primary candidate's
// treatment list, ConsultPhysician marks the explicit terminal state.
func (rc *ResultComposer) Compose(
	snapshot *domain.RuleSnapshot,
	patient domain.PatientContext,
	selected []domain.SelectedSymptom,
	scored []domain.ScoredCandidate,
	urgency domain.UrgencyLevel,
) *domain.DiagnosisResult {
	result := &domain.DiagnosisResult{
		Urgency:         urgency,
		SnapshotVersion: snapshot.Version,
		GeneratedAt:     time.Now().UTC(),
		TemporaryAdvice: rc.temporaryAdvice(snapshot, selected),
	}

	if len(scored) == 0 {
		result.NoMatch = true
		rc.logger.WithFields(logrus.Fields{
			"selected_symptoms": len(selected),
			"urgency":           urgency.String(),
		}).Info("Composed no-match diagnosis result")
		return result
	}

	primary := scored[0]
	result.Primary = &primary
	if len(scored) > 1 {
		result.Secondary = scored[1:]
	}

	treatments := snapshot.TreatmentsFor(primary.Condition)
	result.FilteredTreatments = rc.filter.Filter(treatments, patient)
	if len(treatments) > 0 && len(result.FilteredTreatments) == 0 {
		result.ConsultPhysician = true
	}

	rc.logger.WithFields(logrus.Fields{
		"primary_condition":   primary.Condition.ID,
		"secondary_count":     len(result.Secondary),
		"filtered_treatments": len(result.FilteredTreatments),
		"consult_physician":   result.ConsultPhysician,
		"urgency":             urgency.String(),
	}).Info("Composed diagnosis result")

	return result
}

// temporaryAdvice joins the static advice entries keyed by each selected
// symptom id, deduplicated in selection order. A simple join, never scored.
func (rc *ResultComposer) temporaryAdvice(snapshot *domain.RuleSnapshot, selected []domain.SelectedSymptom) []string {
	var advice []string
	seen := make(map[string]struct{})
	for _, sel := range selected {
		for _, entry := range snapshot.Advice[sel.SymptomID] {
			if _, dup := seen[entry]; dup {
				continue
			}
			seen[entry] = struct{}{}
			advice = append(advice, entry)
		}
	}
	return advice
}
