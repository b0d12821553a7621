package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// ContraindicationFilter removes treatments incompatible with the patient's
// state. The four checks — pregnancy, breastfeeding, age window, chronic
// disease overlap — are independent ORs: a treatment is excluded if any
// applies, and no treatment is ever partially shown.
type ContraindicationFilter struct {
	logger *logrus.Logger
}

// NewContraindicationFilter creates a new contraindication filter.
func NewContraindicationFilter(logger *logrus.Logger) *ContraindicationFilter {
	return &ContraindicationFilter{logger: logger}
}

// IsContraindicated checks a single treatment against the patient state and
// returns every reason that applies. Used by admin UIs for single-item checks.
func (f *ContraindicationFilter) IsContraindicated(treatment domain.Treatment, patient domain.PatientContext) (bool, []string) {
	var reasons []string

	if patient.IsPregnant && treatment.ContraindicatedPregnancy {
		reasons = append(reasons, "contraindicated during pregnancy")
	}

	if patient.IsBreastfeeding && treatment.ContraindicatedBreastfeeding {
		reasons = append(reasons, "contraindicated while breastfeeding")
	}

	if treatment.AgeRestrictionMin != nil && patient.Age < *treatment.AgeRestrictionMin {
		reasons = append(reasons, fmt.Sprintf("patient below minimum age %d", *treatment.AgeRestrictionMin))
	}
	if treatment.AgeRestrictionMax != nil && patient.Age > *treatment.AgeRestrictionMax {
		reasons = append(reasons, fmt.Sprintf("patient above maximum age %d", *treatment.AgeRestrictionMax))
	}

	for _, disease := range treatment.ContraindicatedChronicDiseases {
		if patient.HasChronicDisease(disease) {
			reasons = append(reasons, fmt.Sprintf("contraindicated for chronic disease %s", disease))
		}
	}

	return len(reasons) > 0, reasons
}

// Filter returns the treatments safe for the patient, preserving input order.
func (f *ContraindicationFilter) Filter(treatments []domain.Treatment, patient domain.PatientContext) []domain.Treatment {
	safe := make([]domain.Treatment, 0, len(treatments))
	for _, treatment := range treatments {
		excluded, reasons := f.IsContraindicated(treatment, patient)
		if excluded {
			f.logger.WithFields(logrus.Fields{
				"treatment_id": treatment.ID,
				"reasons":      reasons,
			}).Debug("Excluded contraindicated treatment")
			continue
		}
		safe = append(safe, treatment)
	}
	return safe
}
