package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// maxPatientAge is the sanity ceiling for reported ages; values above it are
// treated as data-entry errors rather than clamped.
const maxPatientAge = 130

// InputParser validates the session-scoped input contract and parses raw
// follow-up answers. Input-validation failures are surfaced to the caller
// before any scoring runs; silently clamping would corrupt the age-based
// contraindication checks downstream.
type InputParser struct{}

// NewInputParser creates a new input parser.
func NewInputParser() *InputParser {
	return &InputParser{}
}

// ValidatePatient rejects malformed patient context.
func (p *InputParser) ValidatePatient(patient domain.PatientContext) error {
	if patient.Age < 0 {
		return domain.NewValidationError("age", "must not be negative", patient.Age)
	}
	if patient.Age > maxPatientAge {
		return domain.NewValidationError("age", fmt.Sprintf("must not exceed %d", maxPatientAge), patient.Age)
	}
	if patient.Gender != "" && !patient.Gender.IsValid() {
		return domain.NewValidationError("gender", "unknown gender value", string(patient.Gender))
	}
	// Pregnancy drives a hard contraindication predicate, so a pregnant
	// non-female patient is a data-entry error, not something to pass through.
	if patient.IsPregnant && patient.Gender != "" && patient.Gender != domain.FEMALE {
		return domain.NewValidationError("is_pregnant", "pregnancy requires female gender", string(patient.Gender))
	}
	for _, disease := range patient.ChronicDiseases {
		if strings.TrimSpace(disease) == "" {
			return domain.NewValidationError("chronic_diseases", "entries must not be blank", disease)
		}
	}
	return nil
}

// ValidateSelection rejects invalid severities and collapses duplicate
// symptom selections, keeping the most severe report per symptom. An empty
// selection is valid; it yields the first-class no-match outcome downstream.
func (p *InputParser) ValidateSelection(selected []domain.SelectedSymptom) ([]domain.SelectedSymptom, error) {
	deduped := make([]domain.SelectedSymptom, 0, len(selected))
	index := make(map[string]int, len(selected))

	for _, sel := range selected {
		if sel.SymptomID == "" {
			return nil, domain.NewValidationError("symptom_id", "must not be empty", sel.SymptomID)
		}
		if !sel.Severity.IsValid() {
			return nil, domain.NewValidationError("severity", "unknown severity level", string(sel.Severity))
		}
		if i, dup := index[sel.SymptomID]; dup {
			if sel.Severity.Rank() > deduped[i].Severity.Rank() {
				deduped[i].Severity = sel.Severity
			}
			continue
		}
		index[sel.SymptomID] = len(deduped)
		deduped = append(deduped, sel)
	}
	return deduped, nil
}

// ParseFollowUp converts the raw wire map (keyed "{symptom_id}_{index}", with
// boolean or string values) into typed answers. Malformed entries are
// collected and skipped rather than failing the run; they are a local,
// recoverable condition. Symptom ids may themselves contain underscores, so
// the index is split off at the last separator.
func (p *InputParser) ParseFollowUp(raw map[string]interface{}) ([]domain.FollowUpAnswer, []string) {
	if len(raw) == 0 {
		return nil, nil
	}

	answers := make([]domain.FollowUpAnswer, 0, len(raw))
	var malformed []string

	for key, value := range raw {
		sep := strings.LastIndex(key, "_")
		if sep <= 0 || sep == len(key)-1 {
			malformed = append(malformed, key)
			continue
		}
		index, err := strconv.Atoi(key[sep+1:])
		if err != nil || index < 0 {
			malformed = append(malformed, key)
			continue
		}

		normalized, ok := normalizeRawAnswer(value)
		if !ok {
			malformed = append(malformed, key)
			continue
		}

		answers = append(answers, domain.FollowUpAnswer{
			SymptomID: key[:sep],
			Index:     index,
			Value:     normalized,
		})
	}

	return answers, malformed
}

// normalizeRawAnswer folds booleans to "true"/"false" and trims/lower-cases strings.
func normalizeRawAnswer(value interface{}) (string, bool) {
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v), true
	case string:
		return strings.ToLower(strings.TrimSpace(v)), true
	default:
		return "", false
	}
}
