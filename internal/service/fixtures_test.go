package service

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testWeights() domain.ScoringConfig {
	return domain.ScoringConfig{
		MildWeight:       1.0,
		ModerateWeight:   2.0,
		SevereWeight:     3.0,
		FollowUpCapRatio: 0.25,
		DefaultLimit:     5,
	}
}

func intPtr(v int) *int { return &v }

// testSnapshot builds the shared rule fixture: three respiratory conditions
// over four symptoms, with severity rules, one chronic correlation, follow-up
// clarifiers and static advice.
func testSnapshot() *domain.RuleSnapshot {
	return &domain.RuleSnapshot{
		Version:  "v1",
		LoadedAt: time.Now().UTC(),
		Symptoms: map[string]domain.Symptom{
			"s_fever":      {ID: "s_fever", NameEN: "Fever", Category: "general"},
			"s_cough":      {ID: "s_cough", NameEN: "Cough", Category: "respiratory"},
			"s_chest_pain": {ID: "s_chest_pain", NameEN: "Chest pain", Category: "cardiac", IsCritical: true},
			"s_headache":   {ID: "s_headache", NameEN: "Headache", Category: "neurological"},
		},
		Conditions: []domain.Condition{
			{
				ID:           "c_flu",
				Name:         "Influenza",
				SymptomIDs:   []string{"s_fever", "s_cough", "s_headache"},
				TreatmentIDs: []string{"t_paracetamol", "t_ibuprofen"},
			},
			{
				ID:           "c_cold",
				Name:         "Common Cold",
				SymptomIDs:   []string{"s_cough", "s_headache"},
				TreatmentIDs: []string{"t_rest"},
			},
			{
				ID:           "c_pneumonia",
				Name:         "Pneumonia",
				SymptomIDs:   []string{"s_fever", "s_cough", "s_chest_pain"},
				TreatmentIDs: []string{"t_antibiotic"},
			},
		},
		Treatments: map[string]domain.Treatment{
			"t_paracetamol": {ID: "t_paracetamol", Name: "Paracetamol", Dosage: "500mg"},
			"t_ibuprofen": {
				ID:                       "t_ibuprofen",
				Name:                     "Ibuprofen",
				ContraindicatedPregnancy: true,
				AgeRestrictionMin:        intPtr(12),
			},
			"t_rest": {ID: "t_rest", Name: "Rest and fluids"},
			"t_antibiotic": {
				ID:                             "t_antibiotic",
				Name:                           "Amoxicillin",
				ContraindicatedChronicDiseases: []string{"cd_kidney_disease"},
				AgeRestrictionMax:              intPtr(65),
			},
		},
		SeverityRules: map[domain.SeverityRuleKey]domain.SymptomSeverityRule{
			{SymptomID: "s_fever", Severity: domain.MILD}: {
				SymptomID: "s_fever", SeverityLevel: domain.MILD, UrgencyLevel: domain.LOW,
			},
			{SymptomID: "s_fever", Severity: domain.MODERATE}: {
				SymptomID: "s_fever", SeverityLevel: domain.MODERATE, UrgencyLevel: domain.MEDIUM,
				RecommendedAction: "monitor temperature and rest",
			},
			{SymptomID: "s_fever", Severity: domain.SEVERE}: {
				SymptomID: "s_fever", SeverityLevel: domain.SEVERE, UrgencyLevel: domain.HIGH,
				RecommendedAction: "seek care within 24 hours",
			},
			{SymptomID: "s_cough", Severity: domain.MILD}: {
				SymptomID: "s_cough", SeverityLevel: domain.MILD, UrgencyLevel: domain.LOW,
			},
			{SymptomID: "s_chest_pain", Severity: domain.MODERATE}: {
				SymptomID: "s_chest_pain", SeverityLevel: domain.MODERATE, UrgencyLevel: domain.HIGH,
				RecommendedAction: "seek care within 24 hours",
			},
			{SymptomID: "s_chest_pain", Severity: domain.SEVERE}: {
				SymptomID: "s_chest_pain", SeverityLevel: domain.SEVERE, UrgencyLevel: domain.EMERGENCY,
				RecommendedAction: "call emergency services",
			},
		},
		Correlations: []domain.ChronicDiseaseCorrelation{
			{
				ChronicDiseaseID:    "cd_diabetes",
				RelatedConditionIDs: []string{"c_pneumonia"},
				SymptomsToWatchIDs:  []string{"s_fever"},
				RiskIncreaseFactor:  1.5,
			},
		},
		FollowUps: []domain.FollowUpQuestion{
			{
				ID: "q1", SymptomID: "s_cough", Index: 0, ConditionID: "c_flu",
				Prompt: "Did the cough start suddenly?", ExpectedAnswer: "yes", Weight: 1.0,
			},
			{
				ID: "q2", SymptomID: "s_cough", Index: 1, ConditionID: "c_cold",
				Prompt: "Is the cough productive?", ExpectedAnswer: "no", Weight: 0.5,
			},
		},
		Advice: map[string][]string{
			"s_fever": {"drink plenty of fluids", "rest"},
			"s_cough": {"rest"},
		},
	}
}
