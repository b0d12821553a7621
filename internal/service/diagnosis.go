package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// ResultCache stores composed diagnosis results keyed by snapshot version and
// input digest. A nil cache disables caching entirely.
type ResultCache interface {
	Get(ctx context.Context, key string) (*domain.DiagnosisResult, bool)
	Set(ctx context.Context, key string, result *domain.DiagnosisResult)
}

// DiagnoseParams is the full session input for one evaluation.
type DiagnoseParams struct {
	Patient  domain.PatientContext
	Symptoms []domain.SelectedSymptom
	FollowUp map[string]interface{}
	Limit    int
}

// DiagnosisService orchestrates one evaluation: validate input, resolve the
// rule snapshot, score candidates, classify urgency and compose the result.
// Scoring and classification stay independent; the service only sequences them.
type DiagnosisService struct {
	resolver   domain.SnapshotResolver
	parser     *InputParser
	scorer     *CandidateScorer
	classifier *UrgencyClassifier
	filter     *ContraindicationFilter
	composer   *ResultComposer
	remote     domain.RemoteDiagnosisProvider
	cache      ResultCache
	logger     *logrus.Logger
}

// NewDiagnosisService creates the orchestrating service. remote and cache may
// be nil; the corresponding features are then disabled.
func NewDiagnosisService(
	resolver domain.SnapshotResolver,
	scorer *CandidateScorer,
	classifier *UrgencyClassifier,
	filter *ContraindicationFilter,
	composer *ResultComposer,
	remote domain.RemoteDiagnosisProvider,
	cache ResultCache,
	logger *logrus.Logger,
) *DiagnosisService {
	return &DiagnosisService{
		resolver:   resolver,
		parser:     NewInputParser(),
		scorer:     scorer,
		classifier: classifier,
		filter:     filter,
		composer:   composer,
		remote:     remote,
		cache:      cache,
		logger:     logger,
	}
}

// Diagnose runs the full local evaluation pipeline.
func (s *DiagnosisService) Diagnose(ctx context.Context, params DiagnoseParams) (*domain.DiagnosisResult, error) {
	if err := s.parser.ValidatePatient(params.Patient); err != nil {
		return nil, err
	}
	selected, err := s.parser.ValidateSelection(params.Symptoms)
	if err != nil {
		return nil, err
	}
	followUp, malformed := s.parser.ParseFollowUp(params.FollowUp)
	if len(malformed) > 0 {
		s.logger.WithField("keys", malformed).Warn("Skipped malformed follow-up answers")
	}

	snapshot, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, &domain.EngineError{
			Code:    domain.ErrRuleStoreUnavailable,
			Message: "rule store unavailable",
			Details: err.Error(),
		}
	}
	selected = s.catalogAllowedSelection(snapshot, selected)

	var cacheKey string
	if s.cache != nil {
		cacheKey = resultCacheKey(snapshot.Version, params.Patient, selected, followUp, params.Limit)
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			s.logger.WithField("snapshot_version", snapshot.Version).Debug("Diagnosis result cache hit")
			return cached, nil
		}
	}

	scored := s.scorer.Score(snapshot, params.Patient, selected, followUp, params.Limit)
	urgency := s.classifier.Classify(snapshot, params.Patient, selected)

	result := s.composer.Compose(snapshot, params.Patient, selected, scored, urgency)
	result.RecommendedActions = s.classifier.RecommendedActions(snapshot, selected)

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, result)
	}

	return result, nil
}

// ClassifyUrgency evaluates only the urgency tier and its recommended actions.
func (s *DiagnosisService) ClassifyUrgency(
	ctx context.Context,
	patient domain.PatientContext,
	symptoms []domain.SelectedSymptom,
) (domain.UrgencyLevel, []string, error) {
	if err := s.parser.ValidatePatient(patient); err != nil {
		return domain.LOW, nil, err
	}
	selected, err := s.parser.ValidateSelection(symptoms)
	if err != nil {
		return domain.LOW, nil, err
	}
	snapshot, err := s.resolver.Resolve(ctx)
	if err != nil {
		return domain.LOW, nil, &domain.EngineError{
			Code:    domain.ErrRuleStoreUnavailable,
			Message: "rule store unavailable",
			Details: err.Error(),
		}
	}
	selected = s.catalogAllowedSelection(snapshot, selected)
	urgency := s.classifier.Classify(snapshot, patient, selected)
	return urgency, s.classifier.RecommendedActions(snapshot, selected), nil
}

// catalogAllowedSelection drops selections whose severity the catalog does
// not permit for that symptom. A disallowed report is a data-quality problem
// and must not feed scoring or the critical-symptom override. Symptoms absent
// from the catalog pass through; they match nothing downstream.
func (s *DiagnosisService) catalogAllowedSelection(
	snapshot *domain.RuleSnapshot,
	selected []domain.SelectedSymptom,
) []domain.SelectedSymptom {
	allowed := make([]domain.SelectedSymptom, 0, len(selected))
	for _, sel := range selected {
		if symptom, ok := snapshot.Symptoms[sel.SymptomID]; ok && !symptom.AllowsSeverity(sel.Severity) {
			s.logger.WithFields(logrus.Fields{
				"code":       domain.ErrInvalidInput,
				"symptom_id": sel.SymptomID,
				"severity":   sel.Severity.String(),
			}).Warn("Dropping selection with catalog-disallowed severity")
			continue
		}
		allowed = append(allowed, sel)
	}
	return allowed
}

// CheckTreatments filters a condition's treatments against the patient state.
// The consult flag is set only when filtering removed every treatment the
// condition actually has; a condition without catalog treatments is not a
// consult-physician state.
func (s *DiagnosisService) CheckTreatments(
	ctx context.Context,
	conditionID string,
	patient domain.PatientContext,
) (treatments []domain.Treatment, consultPhysician bool, err error) {
	if err := s.parser.ValidatePatient(patient); err != nil {
		return nil, false, err
	}
	snapshot, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, false, &domain.EngineError{
			Code:    domain.ErrRuleStoreUnavailable,
			Message: "rule store unavailable",
			Details: err.Error(),
		}
	}
	for _, condition := range snapshot.Conditions {
		if condition.ID == conditionID {
			unfiltered := snapshot.TreatmentsFor(condition)
			filtered := s.filter.Filter(unfiltered, patient)
			return filtered, len(unfiltered) > 0 && len(filtered) == 0, nil
		}
	}
	return nil, false, fmt.Errorf("condition %s: %w", conditionID, domain.ErrNotFound)
}

// RemoteMatch is a remote diagnosis joined against the local catalog.
type RemoteMatch struct {
	Remote             domain.RemoteDiagnosis `json:"remote"`
	Condition          *domain.Condition      `json:"condition,omitempty"`
	FilteredTreatments []domain.Treatment     `json:"filtered_treatments,omitempty"`
}

// MatchRemoteDiagnoses forwards the session to the external AI collaborator
// and joins its ranked diagnoses against the local catalog by name. The
// remote ranking is taken as-is; only catalog enrichment and contraindication
// filtering happen locally. Unmatched diagnoses are returned without a
// condition rather than dropped.
func (s *DiagnosisService) MatchRemoteDiagnoses(
	ctx context.Context,
	patient domain.PatientContext,
	symptoms []domain.SelectedSymptom,
) ([]RemoteMatch, error) {
	if s.remote == nil {
		return nil, &domain.EngineError{
			Code:    domain.ErrExternalAPI,
			Message: "remote diagnosis provider not configured",
		}
	}
	if err := s.parser.ValidatePatient(patient); err != nil {
		return nil, err
	}
	selected, err := s.parser.ValidateSelection(symptoms)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, &domain.EngineError{
			Code:    domain.ErrRuleStoreUnavailable,
			Message: "rule store unavailable",
			Details: err.Error(),
		}
	}

	selected = s.catalogAllowedSelection(snapshot, selected)

	remote, err := s.remote.Diagnose(ctx, patient, selected)
	if err != nil {
		return nil, &domain.EngineError{
			Code:    domain.ErrExternalAPI,
			Message: "remote diagnosis failed",
			Details: err.Error(),
		}
	}

	sort.SliceStable(remote, func(i, j int) bool {
		return remote[i].Probability > remote[j].Probability
	})

	matches := make([]RemoteMatch, 0, len(remote))
	for _, diag := range remote {
		match := RemoteMatch{Remote: diag}
		if condition, ok := snapshot.ConditionByName(diag.DiseaseName); ok {
			c := condition
			match.Condition = &c
			match.FilteredTreatments = s.filter.Filter(snapshot.TreatmentsFor(c), patient)
		}
		matches = append(matches, match)
	}

	s.logger.WithFields(logrus.Fields{
		"remote_diagnoses": len(remote),
		"matched":          countMatched(matches),
	}).Info("Joined remote diagnoses against local catalog")

	return matches, nil
}

// RulesVersion reports the current snapshot version for health and admin checks.
func (s *DiagnosisService) RulesVersion(ctx context.Context) (string, error) {
	snapshot, err := s.resolver.Resolve(ctx)
	if err != nil {
		return "", &domain.EngineError{
			Code:    domain.ErrRuleStoreUnavailable,
			Message: "rule store unavailable",
			Details: err.Error(),
		}
	}
	return snapshot.Version, nil
}

func countMatched(matches []RemoteMatch) int {
	n := 0
	for _, m := range matches {
		if m.Condition != nil {
			n++
		}
	}
	return n
}

// resultCacheKey digests the complete evaluation input. Selections and answers
// are sorted first so key equality tracks input equality, not request order.
func resultCacheKey(
	version string,
	patient domain.PatientContext,
	selected []domain.SelectedSymptom,
	followUp []domain.FollowUpAnswer,
	limit int,
) string {
	sortedSel := make([]domain.SelectedSymptom, len(selected))
	copy(sortedSel, selected)
	sort.Slice(sortedSel, func(i, j int) bool { return sortedSel[i].SymptomID < sortedSel[j].SymptomID })

	sortedFU := make([]domain.FollowUpAnswer, len(followUp))
	copy(sortedFU, followUp)
	sort.Slice(sortedFU, func(i, j int) bool {
		if sortedFU[i].SymptomID != sortedFU[j].SymptomID {
			return sortedFU[i].SymptomID < sortedFU[j].SymptomID
		}
		return sortedFU[i].Index < sortedFU[j].Index
	})

	payload, _ := json.Marshal(struct {
		Patient  domain.PatientContext    `json:"patient"`
		Selected []domain.SelectedSymptom `json:"selected"`
		FollowUp []domain.FollowUpAnswer  `json:"follow_up"`
		Limit    int                      `json:"limit"`
	}{patient, sortedSel, sortedFU, limit})

	digest := sha256.Sum256(payload)
	return strings.Join([]string{version, fmt.Sprintf("%x", digest)}, ":")
}
