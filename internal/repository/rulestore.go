package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// PostgresRuleStore reads the administrator-maintained rule catalog. The
// engine only ever reads; all writes happen through the admin tooling, which
// bumps the store version on every change.
type PostgresRuleStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresRuleStore creates a new rule store backed by the given pool.
func NewPostgresRuleStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresRuleStore {
	return &PostgresRuleStore{
		db:  db,
		log: logger,
	}
}

// Version returns the current store version marker.
func (s *PostgresRuleStore) Version(ctx context.Context) (string, error) {
	query := `SELECT version FROM rule_store_meta ORDER BY updated_at DESC LIMIT 1`

	var version string
	err := s.db.QueryRow(ctx, query).Scan(&version)
	if err != nil {
		if err == pgx.ErrNoRows {
			// A store without a version row is empty, not broken.
			return "", nil
		}
		s.log.WithField("error", err).Error("Failed to read rule store version")
		return "", fmt.Errorf("reading rule store version: %w", err)
	}
	return version, nil
}

// LoadSnapshot bulk-fetches all rule tables inside one repeatable-read
// transaction, so a concurrent admin update can never produce a torn view.
// Invalid rows are dropped or clamped with a data-quality warning rather
// than failing the whole load.
func (s *PostgresRuleStore) LoadSnapshot(ctx context.Context) (*domain.RuleSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snapshot := &domain.RuleSnapshot{
		LoadedAt: time.Now().UTC(),
	}

	if err := tx.QueryRow(ctx, `SELECT version FROM rule_store_meta ORDER BY updated_at DESC LIMIT 1`).
		Scan(&snapshot.Version); err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("reading rule store version: %w", err)
	}

	if snapshot.Symptoms, err = s.loadSymptoms(ctx, tx); err != nil {
		return nil, err
	}
	if snapshot.Conditions, err = s.loadConditions(ctx, tx); err != nil {
		return nil, err
	}
	if snapshot.Treatments, err = s.loadTreatments(ctx, tx); err != nil {
		return nil, err
	}
	if snapshot.SeverityRules, err = s.loadSeverityRules(ctx, tx); err != nil {
		return nil, err
	}
	if snapshot.Correlations, err = s.loadCorrelations(ctx, tx); err != nil {
		return nil, err
	}
	if snapshot.FollowUps, err = s.loadFollowUps(ctx, tx); err != nil {
		return nil, err
	}
	if snapshot.Advice, err = s.loadAdvice(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing snapshot transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"version":    snapshot.Version,
		"symptoms":   len(snapshot.Symptoms),
		"conditions": len(snapshot.Conditions),
		"treatments": len(snapshot.Treatments),
		"rules":      len(snapshot.SeverityRules),
	}).Info("Loaded rule snapshot from store")

	return snapshot, nil
}

func (s *PostgresRuleStore) loadSymptoms(ctx context.Context, tx pgx.Tx) (map[string]domain.Symptom, error) {
	query := `
		SELECT id, name_local, name_en, category, allowed_severities, is_critical
		FROM symptoms
		ORDER BY created_at, id`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying symptoms: %w", err)
	}
	defer rows.Close()

	symptoms := make(map[string]domain.Symptom)
	for rows.Next() {
		var symptom domain.Symptom
		var severities []string

		if err := rows.Scan(
			&symptom.ID,
			&symptom.NameLocal,
			&symptom.NameEN,
			&symptom.Category,
			&severities,
			&symptom.IsCritical,
		); err != nil {
			return nil, fmt.Errorf("scanning symptom row: %w", err)
		}
		for _, sev := range severities {
			symptom.AllowedSeverities = append(symptom.AllowedSeverities, domain.Severity(sev))
		}

		if err := symptom.Validate(); err != nil {
			s.log.WithFields(logrus.Fields{
				"symptom_id": symptom.ID,
				"error":      err,
			}).Warn("Dropping invalid symptom from snapshot")
			continue
		}
		symptoms[symptom.ID] = symptom
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating symptom rows: %w", err)
	}
	return symptoms, nil
}

func (s *PostgresRuleStore) loadConditions(ctx context.Context, tx pgx.Tx) ([]domain.Condition, error) {
	query := `
		SELECT c.id, c.name, c.prevention, c.causes, c.complications, c.warning,
			   COALESCE((SELECT array_agg(cs.symptom_id ORDER BY cs.position)
						 FROM condition_symptoms cs WHERE cs.condition_id = c.id), '{}'),
			   COALESCE((SELECT array_agg(ct.treatment_id ORDER BY ct.position)
						 FROM condition_treatments ct WHERE ct.condition_id = c.id), '{}')
		FROM conditions c
		ORDER BY c.created_at, c.id`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying conditions: %w", err)
	}
	defer rows.Close()

	var conditions []domain.Condition
	for rows.Next() {
		var condition domain.Condition
		if err := rows.Scan(
			&condition.ID,
			&condition.Name,
			&condition.Prevention,
			&condition.Causes,
			&condition.Complications,
			&condition.Warning,
			&condition.SymptomIDs,
			&condition.TreatmentIDs,
		); err != nil {
			return nil, fmt.Errorf("scanning condition row: %w", err)
		}

		// A condition without symptoms can never score; dropping it at load
		// keeps the scorer free of special cases.
		if err := condition.Validate(); err != nil {
			s.log.WithFields(logrus.Fields{
				"condition_id": condition.ID,
				"error":        err,
			}).Warn("Dropping invalid condition from snapshot")
			continue
		}
		conditions = append(conditions, condition)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating condition rows: %w", err)
	}
	return conditions, nil
}

func (s *PostgresRuleStore) loadTreatments(ctx context.Context, tx pgx.Tx) (map[string]domain.Treatment, error) {
	query := `
		SELECT id, name, dosage, contraindicated_pregnancy, contraindicated_breastfeeding,
			   contraindicated_chronic_diseases, age_restriction_min, age_restriction_max
		FROM treatments
		ORDER BY created_at, id`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying treatments: %w", err)
	}
	defer rows.Close()

	treatments := make(map[string]domain.Treatment)
	for rows.Next() {
		var treatment domain.Treatment
		if err := rows.Scan(
			&treatment.ID,
			&treatment.Name,
			&treatment.Dosage,
			&treatment.ContraindicatedPregnancy,
			&treatment.ContraindicatedBreastfeeding,
			&treatment.ContraindicatedChronicDiseases,
			&treatment.AgeRestrictionMin,
			&treatment.AgeRestrictionMax,
		); err != nil {
			return nil, fmt.Errorf("scanning treatment row: %w", err)
		}
		treatments[treatment.ID] = treatment
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating treatment rows: %w", err)
	}
	return treatments, nil
}

func (s *PostgresRuleStore) loadSeverityRules(ctx context.Context, tx pgx.Tx) (map[domain.SeverityRuleKey]domain.SymptomSeverityRule, error) {
	query := `
		SELECT symptom_id, severity_level, urgency_level, possible_condition_ids, recommended_action
		FROM symptom_severity_rules
		ORDER BY created_at, symptom_id, severity_level`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying severity rules: %w", err)
	}
	defer rows.Close()

	rules := make(map[domain.SeverityRuleKey]domain.SymptomSeverityRule)
	for rows.Next() {
		var rule domain.SymptomSeverityRule
		var severity, urgency string

		if err := rows.Scan(
			&rule.SymptomID,
			&severity,
			&urgency,
			&rule.PossibleConditionIDs,
			&rule.RecommendedAction,
		); err != nil {
			return nil, fmt.Errorf("scanning severity rule row: %w", err)
		}
		rule.SeverityLevel = domain.Severity(severity)
		rule.UrgencyLevel = domain.UrgencyLevel(urgency)

		if err := rule.Validate(); err != nil {
			s.log.WithFields(logrus.Fields{
				"symptom_id": rule.SymptomID,
				"severity":   severity,
				"error":      err,
			}).Warn("Dropping invalid severity rule from snapshot")
			continue
		}

		key := domain.SeverityRuleKey{SymptomID: rule.SymptomID, Severity: rule.SeverityLevel}
		if existing, dup := rules[key]; dup {
			// Duplicate (symptom, severity) rules are a data-quality defect.
			// The safer rule wins: keep the higher urgency.
			s.log.WithFields(logrus.Fields{
				"code":       domain.ErrAmbiguousRule,
				"symptom_id": rule.SymptomID,
				"severity":   severity,
				"kept":       existing.UrgencyLevel.Max(rule.UrgencyLevel).String(),
			}).Warn("Duplicate severity rule, keeping higher urgency")
			if rule.UrgencyLevel.Rank() <= existing.UrgencyLevel.Rank() {
				continue
			}
		}
		rules[key] = rule
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating severity rule rows: %w", err)
	}
	return rules, nil
}

func (s *PostgresRuleStore) loadCorrelations(ctx context.Context, tx pgx.Tx) ([]domain.ChronicDiseaseCorrelation, error) {
	query := `
		SELECT chronic_disease_id, related_condition_ids, symptoms_to_watch_ids, risk_increase_factor
		FROM chronic_disease_correlations
		ORDER BY created_at, chronic_disease_id`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying chronic correlations: %w", err)
	}
	defer rows.Close()

	var correlations []domain.ChronicDiseaseCorrelation
	for rows.Next() {
		var corr domain.ChronicDiseaseCorrelation
		if err := rows.Scan(
			&corr.ChronicDiseaseID,
			&corr.RelatedConditionIDs,
			&corr.SymptomsToWatchIDs,
			&corr.RiskIncreaseFactor,
		); err != nil {
			return nil, fmt.Errorf("scanning chronic correlation row: %w", err)
		}

		if corr.RiskIncreaseFactor < 1.0 || corr.RiskIncreaseFactor > 5.0 {
			clamped := corr.RiskIncreaseFactor
			if clamped < 1.0 {
				clamped = 1.0
			}
			if clamped > 5.0 {
				clamped = 5.0
			}
			s.log.WithFields(logrus.Fields{
				"chronic_disease_id": corr.ChronicDiseaseID,
				"factor":             corr.RiskIncreaseFactor,
				"clamped":            clamped,
			}).Warn("Risk increase factor outside [1.0, 5.0], clamping")
			corr.RiskIncreaseFactor = clamped
		}
		correlations = append(correlations, corr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chronic correlation rows: %w", err)
	}
	return correlations, nil
}

func (s *PostgresRuleStore) loadFollowUps(ctx context.Context, tx pgx.Tx) ([]domain.FollowUpQuestion, error) {
	query := `
		SELECT id, symptom_id, question_index, condition_id, prompt, expected_answer, weight
		FROM follow_up_questions
		ORDER BY symptom_id, question_index`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying follow-up questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.FollowUpQuestion
	for rows.Next() {
		var question domain.FollowUpQuestion
		var id uuid.UUID

		if err := rows.Scan(
			&id,
			&question.SymptomID,
			&question.Index,
			&question.ConditionID,
			&question.Prompt,
			&question.ExpectedAnswer,
			&question.Weight,
		); err != nil {
			return nil, fmt.Errorf("scanning follow-up question row: %w", err)
		}
		question.ID = id.String()
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating follow-up question rows: %w", err)
	}
	return questions, nil
}

func (s *PostgresRuleStore) loadAdvice(ctx context.Context, tx pgx.Tx) (map[string][]string, error) {
	query := `
		SELECT symptom_id, advice
		FROM symptom_advice
		ORDER BY symptom_id, position`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying symptom advice: %w", err)
	}
	defer rows.Close()

	advice := make(map[string][]string)
	for rows.Next() {
		var symptomID, entry string
		if err := rows.Scan(&symptomID, &entry); err != nil {
			return nil, fmt.Errorf("scanning symptom advice row: %w", err)
		}
		advice[symptomID] = append(advice[symptomID], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating symptom advice rows: %w", err)
	}
	return advice, nil
}
