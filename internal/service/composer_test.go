package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-diagnosis-server/internal/domain"
)

func newTestComposer() *ResultComposer {
	logger := testLogger()
	return NewResultComposer(logger, NewContraindicationFilter(logger))
}

func TestResultComposer_NoMatch(t *testing.T) {
	composer := newTestComposer()
	selected := []domain.SelectedSymptom{{SymptomID: "s_fever", Severity: domain.MILD}}

	result := composer.Compose(testSnapshot(), domain.PatientContext{Age: 30}, selected, nil, domain.LOW)

	require.NotNil(t, result)
	assert.True(t, result.NoMatch)
	assert.Nil(t, result.Primary)
	assert.Empty(t, result.Secondary)
	assert.False(t, result.ConsultPhysician)
	assert.Equal(t, domain.LOW, result.Urgency)
	assert.Equal(t, "v1", result.SnapshotVersion)
	assert.False(t, result.GeneratedAt.IsZero())
	// Advice still flows on a no-match outcome.
	assert.Equal(t, []string{"drink plenty of fluids", "rest"}, result.TemporaryAdvice)
}

func TestResultComposer_PrimaryAndSecondary(t *testing.T) {
	composer := newTestComposer()
	snapshot := testSnapshot()
	scored := []domain.ScoredCandidate{
		{Condition: snapshot.Conditions[0], RawScore: 4.0}, // c_flu
		{Condition: snapshot.Conditions[2], RawScore: 3.0}, // c_pneumonia
		{Condition: snapshot.Conditions[1], RawScore: 1.0}, // c_cold
	}

	result := composer.Compose(snapshot, domain.PatientContext{Age: 30}, nil, scored, domain.MEDIUM)

	require.NotNil(t, result.Primary)
	assert.Equal(t, "c_flu", result.Primary.Condition.ID)
	require.Len(t, result.Secondary, 2)
	assert.Equal(t, "c_pneumonia", result.Secondary[0].Condition.ID)
	assert.False(t, result.NoMatch)

	// Adult non-pregnant patient keeps both flu treatments, catalog order.
	require.Len(t, result.FilteredTreatments, 2)
	assert.Equal(t, "t_paracetamol", result.FilteredTreatments[0].ID)
	assert.Equal(t, "t_ibuprofen", result.FilteredTreatments[1].ID)
	assert.False(t, result.ConsultPhysician)
}

func TestResultComposer_SingleCandidateHasNoSecondary(t *testing.T) {
	composer := newTestComposer()
	snapshot := testSnapshot()
	scored := []domain.ScoredCandidate{{Condition: snapshot.Conditions[1], RawScore: 2.0}}

	result := composer.Compose(snapshot, domain.PatientContext{Age: 30}, nil, scored, domain.LOW)

	require.NotNil(t, result.Primary)
	assert.Empty(t, result.Secondary)
}

func TestResultComposer_ConsultPhysicianWhenAllTreatmentsFiltered(t *testing.T) {
	composer := newTestComposer()
	snapshot := testSnapshot()
	// Pneumonia's only treatment is contraindicated above age 65.
	scored := []domain.ScoredCandidate{{Condition: snapshot.Conditions[2], RawScore: 6.0}}

	result := composer.Compose(snapshot, domain.PatientContext{Age: 80}, nil, scored, domain.HIGH)

	assert.Empty(t, result.FilteredTreatments)
	assert.True(t, result.ConsultPhysician)
	assert.False(t, result.NoMatch)
}

func TestResultComposer_NoConsultFlagWhenConditionHasNoTreatments(t *testing.T) {
	composer := newTestComposer()
	snapshot := testSnapshot()
	bare := domain.Condition{ID: "c_bare", Name: "Bare", SymptomIDs: []string{"s_fever"}}
	scored := []domain.ScoredCandidate{{Condition: bare, RawScore: 1.0}}

	result := composer.Compose(snapshot, domain.PatientContext{Age: 30}, nil, scored, domain.LOW)

	assert.Empty(t, result.FilteredTreatments)
	assert.False(t, result.ConsultPhysician, "an empty catalog list is not a filtered-away list")
}

func TestResultComposer_AdviceDedupedInSelectionOrder(t *testing.T) {
	composer := newTestComposer()
	selected := []domain.SelectedSymptom{
		{SymptomID: "s_cough", Severity: domain.MILD},
		{SymptomID: "s_fever", Severity: domain.MILD},
	}

	result := composer.Compose(testSnapshot(), domain.PatientContext{Age: 30}, selected, nil, domain.LOW)

	// "rest" appears under both symptoms but is kept once, at first position.
	assert.Equal(t, []string{"rest", "drink plenty of fluids"}, result.TemporaryAdvice)
}
