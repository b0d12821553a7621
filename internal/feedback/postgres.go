package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL, sharing the
// rule-store database. The clinician_feedback table is created by migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection. The schema must already exist.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging feedback database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a connection pool from a postgres URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening feedback database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save stores or updates the review for a session.
func (s *PostgresStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := feedback.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if feedback.ID == "" {
		feedback.ID = uuid.New().String()
	}

	query := `
		INSERT INTO clinician_feedback (
			id, session_id, primary_condition_id,
			urgency_given, clinician_urgency, agreed,
			notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
			primary_condition_id = EXCLUDED.primary_condition_id,
			urgency_given = EXCLUDED.urgency_given,
			clinician_urgency = EXCLUDED.clinician_urgency,
			agreed = EXCLUDED.agreed,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		feedback.ID,
		feedback.SessionID,
		feedback.PrimaryConditionID,
		feedback.UrgencyGiven.String(),
		feedback.ClinicianUrgency.String(),
		feedback.Agreed,
		feedback.Notes,
		now,
		now,
	).Scan(&feedback.ID, &feedback.CreatedAt)

	if err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}

	feedback.UpdatedAt = now
	return nil
}

// Get retrieves the review for a session.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*Feedback, error) {
	query := `
		SELECT id, session_id, primary_condition_id,
			urgency_given, clinician_urgency, agreed,
			notes, created_at, updated_at
		FROM clinician_feedback
		WHERE session_id = $1
		LIMIT 1
	`

	fb := &Feedback{}
	var urgencyGiven, clinicianUrgency string

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&fb.ID, &fb.SessionID, &fb.PrimaryConditionID,
		&urgencyGiven, &clinicianUrgency, &fb.Agreed,
		&fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting feedback: %w", err)
	}

	fb.UrgencyGiven = domain.UrgencyLevel(urgencyGiven)
	fb.ClinicianUrgency = domain.UrgencyLevel(clinicianUrgency)
	return fb, nil
}

// List returns reviews newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	query := `
		SELECT id, session_id, primary_condition_id,
			urgency_given, clinician_urgency, agreed,
			notes, created_at, updated_at
		FROM clinician_feedback
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var result []*Feedback
	for rows.Next() {
		fb := &Feedback{}
		var urgencyGiven, clinicianUrgency string

		err := rows.Scan(
			&fb.ID, &fb.SessionID, &fb.PrimaryConditionID,
			&urgencyGiven, &clinicianUrgency, &fb.Agreed,
			&fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning feedback row: %w", err)
		}

		fb.UrgencyGiven = domain.UrgencyLevel(urgencyGiven)
		fb.ClinicianUrgency = domain.UrgencyLevel(clinicianUrgency)
		result = append(result, fb)
	}

	return result, rows.Err()
}

// Count returns the total number of reviews.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clinician_feedback").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting feedback: %w", err)
	}
	return count, nil
}

// AgreementRate returns the fraction of reviews agreeing with the engine.
func (s *PostgresStore) AgreementRate(ctx context.Context) (float64, error) {
	var total, agreed int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(*) FILTER (WHERE agreed) FROM clinician_feedback",
	).Scan(&total, &agreed)
	if err != nil {
		return 0, fmt.Errorf("computing agreement rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(agreed) / float64(total), nil
}

// Delete removes a review by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM clinician_feedback WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting feedback: %w", err)
	}
	return nil
}

// pgMaxExportLimit is the maximum number of entries to export at once.
const pgMaxExportLimit = 1000000

// ExportJSON writes all reviews to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, pgMaxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("listing feedback for export: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Feedback:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON reads reviews from a JSON reader, skipping existing sessions.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("decoding feedback export: %w", err)
	}

	for _, fb := range export.Feedback {
		existing, err := s.Get(ctx, fb.SessionID)
		if err != nil {
			return imported, skipped, fmt.Errorf("checking existing feedback: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}
		if err := s.Save(ctx, fb); err != nil {
			return imported, skipped, fmt.Errorf("saving imported feedback: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
