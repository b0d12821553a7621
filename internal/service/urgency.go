package service

import (
	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// UrgencyClassifier derives a single ordinal urgency tier from symptom
// severities, critical-symptom flags and chronic-disease correlations.
// It runs independently of the candidate scorer: urgency is a property of
// the reported symptoms, not of the top-ranked condition.
type UrgencyClassifier struct {
	logger *logrus.Logger
}

// NewUrgencyClassifier creates a new urgency classifier.
func NewUrgencyClassifier(logger *logrus.Logger) *UrgencyClassifier {
	return &UrgencyClassifier{logger: logger}
}

// Classify folds the selected symptoms over the severity rules, starting at
// LOW and keeping the maximum urgency seen.
//
// Safety floor: any critical symptom reported at SEVERE severity forces
// EMERGENCY immediately, regardless of rules or weights. Chronic-disease
// amplification raises the result one tier but is capped at HIGH — it never
// manufactures an EMERGENCY on its own. Absence of a matching rule simply
// contributes nothing.
func (c *UrgencyClassifier) Classify(
	snapshot *domain.RuleSnapshot,
	patient domain.PatientContext,
	selected []domain.SelectedSymptom,
) domain.UrgencyLevel {
	urgency := domain.LOW

	for _, sel := range selected {
		if symptom, ok := snapshot.Symptoms[sel.SymptomID]; ok {
			if symptom.IsCritical && sel.Severity == domain.SEVERE {
				c.logger.WithFields(logrus.Fields{
					"symptom_id": sel.SymptomID,
					"severity":   sel.Severity.String(),
				}).Warn("Critical symptom at severe severity, forcing EMERGENCY")
				return domain.EMERGENCY
			}
		}

		if rule, ok := snapshot.SeverityRule(sel.SymptomID, sel.Severity); ok {
			urgency = urgency.Max(rule.UrgencyLevel)
		}
	}

	if urgency != domain.EMERGENCY && c.chronicRiskApplies(snapshot, patient, selected) {
		raised := urgency.Raise(domain.HIGH)
		if raised != urgency {
			c.logger.WithFields(logrus.Fields{
				"from": urgency.String(),
				"to":   raised.String(),
			}).Info("Chronic-disease correlation raised urgency")
		}
		urgency = raised
	}

	c.logger.WithFields(urgency.LogFields()).Debug("Completed urgency classification")
	return urgency
}

// chronicRiskApplies reports whether any of the patient's chronic diseases
// has a correlation whose symptoms-to-watch intersect the selection.
func (c *UrgencyClassifier) chronicRiskApplies(
	snapshot *domain.RuleSnapshot,
	patient domain.PatientContext,
	selected []domain.SelectedSymptom,
) bool {
	if len(patient.ChronicDiseases) == 0 {
		return false
	}
	selectedIDs := make(map[string]struct{}, len(selected))
	for _, sel := range selected {
		selectedIDs[sel.SymptomID] = struct{}{}
	}
	for _, corr := range snapshot.Correlations {
		if !patient.HasChronicDisease(corr.ChronicDiseaseID) {
			continue
		}
		for _, symptomID := range corr.SymptomsToWatchIDs {
			if _, ok := selectedIDs[symptomID]; ok {
				return true
			}
		}
	}
	return false
}

// RecommendedActions collects the recommended actions of every severity rule
// matched by the selection, deduplicated in selection order.
func (c *UrgencyClassifier) RecommendedActions(
	snapshot *domain.RuleSnapshot,
	selected []domain.SelectedSymptom,
) []string {
	var actions []string
	seen := make(map[string]struct{})
	for _, sel := range selected {
		rule, ok := snapshot.SeverityRule(sel.SymptomID, sel.Severity)
		if !ok || rule.RecommendedAction == "" {
			continue
		}
		if _, dup := seen[rule.RecommendedAction]; dup {
			continue
		}
		seen[rule.RecommendedAction] = struct{}{}
		actions = append(actions, rule.RecommendedAction)
	}
	return actions
}
