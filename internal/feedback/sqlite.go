package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite. Suited to
// single-node deployments that do not want to share the rule-store database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a SQLite feedback store, creating the database file
// and schema as needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating feedback directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening feedback database: %w", err)
	}

	// WAL keeps concurrent API writes from blocking reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating feedback schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS clinician_feedback (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		primary_condition_id TEXT DEFAULT '',
		urgency_given TEXT NOT NULL,
		clinician_urgency TEXT NOT NULL,
		agreed INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON clinician_feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is the shared interface of sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	var urgencyGiven, clinicianUrgency string

	err := s.Scan(
		&fb.ID, &fb.SessionID, &fb.PrimaryConditionID,
		&urgencyGiven, &clinicianUrgency, &fb.Agreed,
		&fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fb.UrgencyGiven = domain.UrgencyLevel(urgencyGiven)
	fb.ClinicianUrgency = domain.UrgencyLevel(clinicianUrgency)
	return fb, nil
}

// Save stores or updates the review for a session.
func (s *SQLiteStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := feedback.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	var existingID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM clinician_feedback WHERE session_id = ?",
		feedback.SessionID,
	).Scan(&existingID)

	if err == nil {
		feedback.ID = existingID
		feedback.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE clinician_feedback SET
				primary_condition_id = ?,
				urgency_given = ?,
				clinician_urgency = ?,
				agreed = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			feedback.PrimaryConditionID,
			feedback.UrgencyGiven.String(),
			feedback.ClinicianUrgency.String(),
			feedback.Agreed,
			feedback.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("checking existing feedback: %w", err)
	}

	if feedback.ID == "" {
		feedback.ID = uuid.New().String()
	}
	feedback.CreatedAt = now
	feedback.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clinician_feedback (
			id, session_id, primary_condition_id,
			urgency_given, clinician_urgency, agreed,
			notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feedback.ID,
		feedback.SessionID,
		feedback.PrimaryConditionID,
		feedback.UrgencyGiven.String(),
		feedback.ClinicianUrgency.String(),
		feedback.Agreed,
		feedback.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}

	return nil
}

// Get retrieves the review for a session.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, primary_condition_id,
			urgency_given, clinician_urgency, agreed,
			notes, created_at, updated_at
		FROM clinician_feedback
		WHERE session_id = ?
		LIMIT 1
	`, sessionID)

	fb, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning feedback: %w", err)
	}
	return fb, nil
}

// List returns reviews newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, primary_condition_id,
			urgency_given, clinician_urgency, agreed,
			notes, created_at, updated_at
		FROM clinician_feedback
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var result []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning feedback row: %w", err)
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

// Count returns the total number of reviews.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clinician_feedback").Scan(&count)
	return count, err
}

// AgreementRate returns the fraction of reviews agreeing with the engine.
func (s *SQLiteStore) AgreementRate(ctx context.Context) (float64, error) {
	var total, agreed int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(agreed), 0) FROM clinician_feedback",
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
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM clinician_feedback WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON writes all reviews to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
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
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
