package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-diagnosis-server/internal/domain"
)

func TestCandidateScorer_EmptySelection(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())

	result := scorer.Score(testSnapshot(), domain.PatientContext{Age: 30}, nil, nil, 0)

	assert.Empty(t, result)
}

func TestCandidateScorer_RanksByRawScore(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	selected := []domain.SelectedSymptom{
		{SymptomID: "s_fever", Severity: domain.SEVERE},
		{SymptomID: "s_cough", Severity: domain.MILD},
	}

	result := scorer.Score(testSnapshot(), domain.PatientContext{Age: 30}, selected, nil, 0)

	require.Len(t, result, 3)

	// Influenza and Pneumonia tie at 3+1=4; the stable sort keeps catalog
	// order, so Influenza ranks first.
	assert.Equal(t, "c_flu", result[0].Condition.ID)
	assert.Equal(t, "c_pneumonia", result[1].Condition.ID)
	assert.Equal(t, "c_cold", result[2].Condition.ID)

	assert.InDelta(t, 4.0, result[0].RawScore, 1e-9)
	assert.InDelta(t, 4.0, result[1].RawScore, 1e-9)
	assert.InDelta(t, 1.0, result[2].RawScore, 1e-9)

	assert.ElementsMatch(t, []string{"s_fever", "s_cough"}, result[0].MatchedSymptomIDs)

	// 4 of max 9 for a three-symptom condition.
	assert.InDelta(t, 4.0/9.0*100, result[0].NormalizedPercentage, 1e-9)
	for _, c := range result {
		assert.GreaterOrEqual(t, c.NormalizedPercentage, 0.0)
		assert.LessOrEqual(t, c.NormalizedPercentage, 100.0)
	}
}

func TestCandidateScorer_Deterministic(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	snapshot := testSnapshot()
	patient := domain.PatientContext{Age: 45, ChronicDiseases: []string{"cd_diabetes"}}
	selected := []domain.SelectedSymptom{
		{SymptomID: "s_fever", Severity: domain.MODERATE},
		{SymptomID: "s_cough", Severity: domain.MILD},
		{SymptomID: "s_headache", Severity: domain.MILD},
	}
	followUp := []domain.FollowUpAnswer{{SymptomID: "s_cough", Index: 0, Value: "yes"}}

	first := scorer.Score(snapshot, patient, selected, followUp, 0)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, scorer.Score(snapshot, patient, selected, followUp, 0))
	}
}

func TestCandidateScorer_AddingSymptomNeverLowersScore(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	snapshot := testSnapshot()
	patient := domain.PatientContext{Age: 30}

	base := scorer.Score(snapshot, patient, []domain.SelectedSymptom{
		{SymptomID: "s_fever", Severity: domain.SEVERE},
	}, nil, 0)
	extended := scorer.Score(snapshot, patient, []domain.SelectedSymptom{
		{SymptomID: "s_fever", Severity: domain.SEVERE},
		{SymptomID: "s_cough", Severity: domain.MILD},
	}, nil, 0)

	baseScores := make(map[string]float64)
	for _, c := range base {
		baseScores[c.Condition.ID] = c.RawScore
	}
	for _, c := range extended {
		if prev, ok := baseScores[c.Condition.ID]; ok {
			assert.GreaterOrEqual(t, c.RawScore, prev, "condition %s", c.Condition.ID)
		}
	}
}

func TestCandidateScorer_FollowUpAdjustmentIsBounded(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	selected := []domain.SelectedSymptom{{SymptomID: "s_cough", Severity: domain.MILD}}
	followUp := []domain.FollowUpAnswer{{SymptomID: "s_cough", Index: 0, Value: "yes"}}

	result := scorer.Score(testSnapshot(), domain.PatientContext{Age: 30}, selected, followUp, 0)

	var flu *domain.ScoredCandidate
	for i := range result {
		if result[i].Condition.ID == "c_flu" {
			flu = &result[i]
		}
	}
	require.NotNil(t, flu)

	// Raw weight is 1.0 but the net adjustment is capped at 0.25 * base.
	assert.InDelta(t, 1.25, flu.RawScore, 1e-9)
}

func TestCandidateScorer_FollowUpAnswerMustMatchExpectation(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	selected := []domain.SelectedSymptom{{SymptomID: "s_cough", Severity: domain.MILD}}
	followUp := []domain.FollowUpAnswer{{SymptomID: "s_cough", Index: 0, Value: "no"}}

	result := scorer.Score(testSnapshot(), domain.PatientContext{Age: 30}, selected, followUp, 0)

	for _, c := range result {
		if c.Condition.ID == "c_flu" {
			assert.InDelta(t, 1.0, c.RawScore, 1e-9)
		}
	}
}

func TestCandidateScorer_BooleanAnswersFold(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	selected := []domain.SelectedSymptom{{SymptomID: "s_cough", Severity: domain.MILD}}

	// "true" must count against an expected answer of "yes".
	followUp := []domain.FollowUpAnswer{{SymptomID: "s_cough", Index: 0, Value: "true"}}
	result := scorer.Score(testSnapshot(), domain.PatientContext{Age: 30}, selected, followUp, 0)

	for _, c := range result {
		if c.Condition.ID == "c_flu" {
			assert.InDelta(t, 1.25, c.RawScore, 1e-9)
		}
	}
}

func TestCandidateScorer_ChronicDiseaseAmplifiesCorrelatedCondition(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	selected := []domain.SelectedSymptom{{SymptomID: "s_fever", Severity: domain.MODERATE}}

	diabetic := domain.PatientContext{Age: 60, ChronicDiseases: []string{"cd_diabetes"}}
	result := scorer.Score(testSnapshot(), diabetic, selected, nil, 0)

	require.Len(t, result, 2)

	// Pneumonia is amplified by 1.5 (2.0 -> 3.0) and outranks Influenza.
	assert.Equal(t, "c_pneumonia", result[0].Condition.ID)
	assert.InDelta(t, 3.0, result[0].RawScore, 1e-9)
	assert.Equal(t, "c_flu", result[1].Condition.ID)
	assert.InDelta(t, 2.0, result[1].RawScore, 1e-9)

	// Without the chronic disease the catalog order tie-break applies.
	healthy := scorer.Score(testSnapshot(), domain.PatientContext{Age: 60}, selected, nil, 0)
	require.Len(t, healthy, 2)
	assert.Equal(t, "c_flu", healthy[0].Condition.ID)
}

func TestCandidateScorer_AmplificationRequiresWatchedSymptom(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	// s_cough is not in the diabetes watch list, so no amplification fires.
	selected := []domain.SelectedSymptom{{SymptomID: "s_cough", Severity: domain.MODERATE}}
	diabetic := domain.PatientContext{Age: 60, ChronicDiseases: []string{"cd_diabetes"}}

	result := scorer.Score(testSnapshot(), diabetic, selected, nil, 0)

	for _, c := range result {
		if c.Condition.ID == "c_pneumonia" {
			assert.InDelta(t, 2.0, c.RawScore, 1e-9)
		}
	}
}

func TestCandidateScorer_LimitTruncates(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	selected := []domain.SelectedSymptom{{SymptomID: "s_cough", Severity: domain.MILD}}

	result := scorer.Score(testSnapshot(), domain.PatientContext{Age: 30}, selected, nil, 1)

	assert.Len(t, result, 1)
}

func TestCandidateScorer_DefaultLimitWhenCallerOmitsOne(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())

	// Eight conditions all match the single selected symptom; with no caller
	// limit, truncation must fall back to the configured default of five.
	snapshot := &domain.RuleSnapshot{
		Version:  "v1",
		Symptoms: map[string]domain.Symptom{"s_fatigue": {ID: "s_fatigue", NameEN: "Fatigue"}},
	}
	for i := 0; i < 8; i++ {
		snapshot.Conditions = append(snapshot.Conditions, domain.Condition{
			ID:         string(rune('a' + i)),
			Name:       "Condition",
			SymptomIDs: []string{"s_fatigue"},
		})
	}
	selected := []domain.SelectedSymptom{{SymptomID: "s_fatigue", Severity: domain.MILD}}

	assert.Len(t, scorer.Score(snapshot, domain.PatientContext{Age: 30}, selected, nil, 0), 5)
	assert.Len(t, scorer.Score(snapshot, domain.PatientContext{Age: 30}, selected, nil, 7), 7)
}

func TestCandidateScorer_ExcludesZeroOverlap(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	selected := []domain.SelectedSymptom{{SymptomID: "s_headache", Severity: domain.SEVERE}}

	result := scorer.Score(testSnapshot(), domain.PatientContext{Age: 30}, selected, nil, 0)

	for _, c := range result {
		assert.NotEqual(t, "c_pneumonia", c.Condition.ID, "no-overlap condition must be excluded, not zero-scored")
	}
	require.Len(t, result, 2)
}

func TestCandidateScorer_UnknownSymptomContributesNothing(t *testing.T) {
	scorer := NewCandidateScorer(testLogger(), testWeights())
	selected := []domain.SelectedSymptom{
		{SymptomID: "s_fever", Severity: domain.MILD},
		{SymptomID: "s_unknown", Severity: domain.SEVERE},
	}

	result := scorer.Score(testSnapshot(), domain.PatientContext{Age: 30}, selected, nil, 0)

	for _, c := range result {
		assert.NotContains(t, c.MatchedSymptomIDs, "s_unknown")
	}
}
