package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reference Data Models (read-only to the engine at evaluation time)

// Symptom represents an entry in the administrator-maintained symptom catalog.
type Symptom struct {
	ID                string     `json:"id" validate:"required"`
	NameLocal         string     `json:"name_local"`
	NameEN            string     `json:"name_en" validate:"required"`
	Category          string     `json:"category"`
	AllowedSeverities []Severity `json:"allowed_severities"`
	// IsCritical marks a symptom that, at SEVERE severity, forces an
	// EMERGENCY classification regardless of any other rule.
	IsCritical bool `json:"is_critical"`
}

// AllowsSeverity reports whether the catalog permits the given severity for this symptom.
func (s *Symptom) AllowsSeverity(sev Severity) bool {
	if len(s.AllowedSeverities) == 0 {
		return sev.IsValid()
	}
	for _, allowed := range s.AllowedSeverities {
		if allowed == sev {
			return true
		}
	}
	return false
}

// Validate ensures the symptom data meets catalog requirements.
func (s *Symptom) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("symptom validation: %w", errors.New("ID is required"))
	}
	if s.NameEN == "" && s.NameLocal == "" {
		return fmt.Errorf("symptom validation: %w", errors.New("a name is required"))
	}
	for _, sev := range s.AllowedSeverities {
		if !sev.IsValid() {
			return fmt.Errorf("symptom validation: %w", ErrInvalidSeverity)
		}
	}
	return nil
}

// Condition represents a disease/problem with its associated symptom set
// and ordered treatment list.
type Condition struct {
	ID            string   `json:"id" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	SymptomIDs    []string `json:"symptom_ids" validate:"required,min=1"`
	TreatmentIDs  []string `json:"treatment_ids"`
	Prevention    string   `json:"prevention,omitempty"`
	Causes        string   `json:"causes,omitempty"`
	Complications string   `json:"complications,omitempty"`
	Warning       string   `json:"warning,omitempty"`
}

// Validate ensures the condition data is usable for scoring.
// A condition without symptoms can never be scored positively, so an
// empty symptom set is rejected at the data-access boundary.
func (c *Condition) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("condition validation: %w", errors.New("ID is required"))
	}
	if c.Name == "" {
		return fmt.Errorf("condition validation: %w", errors.New("name is required"))
	}
	if len(c.SymptomIDs) == 0 {
		return fmt.Errorf("condition validation: %w", errors.New("symptom set must not be empty"))
	}
	return nil
}

// HasSymptom reports whether the condition's symptom set contains the given id.
func (c *Condition) HasSymptom(symptomID string) bool {
	for _, id := range c.SymptomIDs {
		if id == symptomID {
			return true
		}
	}
	return false
}

// ChronicDiseaseCorrelation captures the elevated risk a chronic disease
// carries for a set of related conditions when certain symptoms appear.
type ChronicDiseaseCorrelation struct {
	ChronicDiseaseID    string   `json:"chronic_disease_id" validate:"required"`
	RelatedConditionIDs []string `json:"related_condition_ids"`
	SymptomsToWatchIDs  []string `json:"symptoms_to_watch_ids"`
	// RiskIncreaseFactor must fall in [1.0, 5.0]; out-of-range values are
	// clamped at snapshot load with a data-quality warning.
	RiskIncreaseFactor float64 `json:"risk_increase_factor"`
}

// Validate ensures the correlation's risk factor stays inside the supported band.
func (cc *ChronicDiseaseCorrelation) Validate() error {
	if cc.ChronicDiseaseID == "" {
		return fmt.Errorf("chronic correlation validation: %w", errors.New("chronic disease ID is required"))
	}
	if cc.RiskIncreaseFactor < 1.0 || cc.RiskIncreaseFactor > 5.0 {
		return fmt.Errorf("chronic correlation validation: risk increase factor %.2f outside [1.0, 5.0]", cc.RiskIncreaseFactor)
	}
	return nil
}

// SymptomSeverityRule maps a (symptom, severity) pair to an urgency tier.
// At most one rule may exist per pair; duplicates are resolved at load time
// by keeping the more severe urgency.
type SymptomSeverityRule struct {
	SymptomID            string       `json:"symptom_id" validate:"required"`
	SeverityLevel        Severity     `json:"severity_level" validate:"required"`
	UrgencyLevel         UrgencyLevel `json:"urgency_level" validate:"required"`
	PossibleConditionIDs []string     `json:"possible_condition_ids,omitempty"`
	RecommendedAction    string       `json:"recommended_action,omitempty"`
}

// Validate ensures the rule references valid enum values.
func (r *SymptomSeverityRule) Validate() error {
	if r.SymptomID == "" {
		return fmt.Errorf("severity rule validation: %w", errors.New("symptom ID is required"))
	}
	if !r.SeverityLevel.IsValid() {
		return fmt.Errorf("severity rule validation: %w", ErrInvalidSeverity)
	}
	if !r.UrgencyLevel.IsValid() {
		return fmt.Errorf("severity rule validation: %w", ErrInvalidUrgencyLevel)
	}
	return nil
}

// FollowUpQuestion is a condition-specific clarifier presented after symptom
// selection. The answer key on the wire is "{symptom_id}_{index}".
type FollowUpQuestion struct {
	ID          string `json:"id"`
	SymptomID   string `json:"symptom_id" validate:"required"`
	Index       int    `json:"index"`
	ConditionID string `json:"condition_id" validate:"required"`
	Prompt      string `json:"prompt"`
	// ExpectedAnswer is compared case-insensitively against the patient's
	// answer; booleans are normalized to "true"/"false".
	ExpectedAnswer string `json:"expected_answer"`
	// Weight is the signed score adjustment applied to ConditionID when the
	// answer matches ExpectedAnswer. The scorer bounds the net adjustment
	// relative to the base score.
	Weight float64 `json:"weight"`
}

// Key returns the wire key under which answers to this question arrive.
func (q *FollowUpQuestion) Key() string {
	return fmt.Sprintf("%s_%d", q.SymptomID, q.Index)
}

// Treatment represents a recommendable treatment with its contraindications.
type Treatment struct {
	ID                             string   `json:"id" validate:"required"`
	Name                           string   `json:"name" validate:"required"`
	Dosage                         string   `json:"dosage,omitempty"`
	ContraindicatedPregnancy       bool     `json:"contraindicated_pregnancy"`
	ContraindicatedBreastfeeding   bool     `json:"contraindicated_breastfeeding"`
	ContraindicatedChronicDiseases []string `json:"contraindicated_chronic_diseases,omitempty"`
	AgeRestrictionMin              *int     `json:"age_restriction_min,omitempty"`
	AgeRestrictionMax              *int     `json:"age_restriction_max,omitempty"`
}

// Session-scoped Input Models

// SelectedSymptom is one symptom chosen by the patient for this session,
// discarded after the diagnosis run completes.
type SelectedSymptom struct {
	SymptomID string   `json:"symptom_id" validate:"required"`
	Severity  Severity `json:"severity" validate:"required"`
}

// FollowUpAnswer is a parsed follow-up response. Raw answers arrive keyed
// "{symptom_id}_{index}" with boolean or string values.
type FollowUpAnswer struct {
	SymptomID string `json:"symptom_id"`
	Index     int    `json:"index"`
	// Value is the normalized answer: booleans become "true"/"false",
	// strings are lower-cased and trimmed.
	Value string `json:"value"`
}

// PatientContext is the demographic and medical context supplied fresh per
// session. The engine never persists it.
type PatientContext struct {
	Age             int      `json:"age"`
	Gender          Gender   `json:"gender"`
	IsPregnant      bool     `json:"is_pregnant"`
	IsBreastfeeding bool     `json:"is_breastfeeding"`
	ChronicDiseases []string `json:"chronic_diseases,omitempty"`
}

// HasChronicDisease reports whether the patient reported the given chronic disease.
func (p *PatientContext) HasChronicDisease(id string) bool {
	for _, d := range p.ChronicDiseases {
		if d == id {
			return true
		}
	}
	return false
}

// Derived Models (created at evaluation time, no lifecycle beyond the request)

// ScoredCandidate is a condition with its computed match strength.
// Recomputed every run; never cached across snapshot versions.
type ScoredCandidate struct {
	Condition Condition `json:"condition"`
	RawScore  float64   `json:"raw_score"`
	// NormalizedPercentage is raw score over the condition's maximum
	// possible score, clamped to [0, 100]. Display-only; ranking uses RawScore.
	NormalizedPercentage float64  `json:"normalized_percentage"`
	MatchedSymptomIDs    []string `json:"matched_symptom_ids"`
}

// RemoteDiagnosis is one entry of the ranking returned by the external AI
// collaborator. The engine only matches it against the local catalog.
type RemoteDiagnosis struct {
	DiseaseName string  `json:"disease_name"`
	Probability float64 `json:"probability,omitempty"`
	Advice      string  `json:"advice,omitempty"`
}

// DiagnosisResult is the sole engine output, immutable once produced.
type DiagnosisResult struct {
	Primary            *ScoredCandidate  `json:"primary,omitempty"`
	Secondary          []ScoredCandidate `json:"secondary,omitempty"`
	Urgency            UrgencyLevel      `json:"urgency"`
	FilteredTreatments []Treatment       `json:"filtered_treatments,omitempty"`
	TemporaryAdvice    []string          `json:"temporary_advice,omitempty"`
	RecommendedActions []string          `json:"recommended_actions,omitempty"`
	// NoMatch is the first-class "no candidates" outcome; the UI must render
	// it distinctly from a system failure.
	NoMatch bool `json:"no_match"`
	// ConsultPhysician is set when contraindication filtering removed every
	// treatment of the primary candidate — an explicit terminal state, not
	// a silently empty list.
	ConsultPhysician bool      `json:"consult_physician"`
	SnapshotVersion  string    `json:"snapshot_version"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Rule Snapshot

// SeverityRuleKey identifies the unique (symptom, severity) rule slot.
type SeverityRuleKey struct {
	SymptomID string
	Severity  Severity
}

// RuleSnapshot is a consistent, validated, in-memory view of the rule store.
// A single evaluation always sees exactly one snapshot, even if an
// administrator updates the store concurrently.
type RuleSnapshot struct {
	Version       string                                  `json:"version"`
	LoadedAt      time.Time                               `json:"loaded_at"`
	Symptoms      map[string]Symptom                      `json:"symptoms"`
	Conditions    []Condition                             `json:"conditions"`
	Treatments    map[string]Treatment                    `json:"treatments"`
	SeverityRules map[SeverityRuleKey]SymptomSeverityRule `json:"-"`
	Correlations  []ChronicDiseaseCorrelation             `json:"correlations"`
	FollowUps     []FollowUpQuestion                      `json:"follow_ups"`
	// Advice maps a symptom id to its static temporary-advice entries.
	Advice map[string][]string `json:"advice"`
}

// IsEmpty reports whether the store held no catalog data at all.
// An empty store produces empty results, not an error.
func (rs *RuleSnapshot) IsEmpty() bool {
	return len(rs.Conditions) == 0 && len(rs.Symptoms) == 0
}

// SeverityRule looks up the rule for a (symptom, severity) pair.
func (rs *RuleSnapshot) SeverityRule(symptomID string, sev Severity) (SymptomSeverityRule, bool) {
	rule, ok := rs.SeverityRules[SeverityRuleKey{SymptomID: symptomID, Severity: sev}]
	return rule, ok
}

// TreatmentsFor resolves a condition's ordered treatment id list against the
// treatment catalog, skipping dangling references.
func (rs *RuleSnapshot) TreatmentsFor(c Condition) []Treatment {
	treatments := make([]Treatment, 0, len(c.TreatmentIDs))
	for _, id := range c.TreatmentIDs {
		if t, ok := rs.Treatments[id]; ok {
			treatments = append(treatments, t)
		}
	}
	return treatments
}

// ConditionByName performs a case-insensitive catalog lookup used by the
// remote-AI match path.
func (rs *RuleSnapshot) ConditionByName(name string) (Condition, bool) {
	name = strings.TrimSpace(name)
	for _, c := range rs.Conditions {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Condition{}, false
}
