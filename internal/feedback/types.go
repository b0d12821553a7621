// Package feedback stores clinician feedback on diagnosis results. Reviewing
// clinicians record whether they agreed with the engine's urgency call, which
// feeds the offline rule-quality review cycle.
package feedback

import (
	"context"
	"io"
	"time"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// Feedback is one clinician review of a diagnosis session. A session carries
// at most one review; saving again replaces the earlier one.
type Feedback struct {
	ID                 string              `json:"id,omitempty"`
	SessionID          string              `json:"session_id"`
	PrimaryConditionID string              `json:"primary_condition_id,omitempty"`
	UrgencyGiven       domain.UrgencyLevel `json:"urgency_given"`
	ClinicianUrgency   domain.UrgencyLevel `json:"clinician_urgency"`
	Agreed             bool                `json:"agreed"`
	Notes              string              `json:"notes,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Validate checks the review before it reaches a store.
func (f *Feedback) Validate() error {
	if f.SessionID == "" {
		return domain.NewValidationError("session_id", "must not be empty", f.SessionID)
	}
	if !f.UrgencyGiven.IsValid() {
		return domain.NewValidationError("urgency_given", "unknown urgency level", string(f.UrgencyGiven))
	}
	if !f.ClinicianUrgency.IsValid() {
		return domain.NewValidationError("clinician_urgency", "unknown urgency level", string(f.ClinicianUrgency))
	}
	return nil
}

// Store defines the feedback storage operations.
type Store interface {
	// Save stores or updates the review for a session.
	Save(ctx context.Context, feedback *Feedback) error

	// Get retrieves the review for a session, nil when none exists.
	Get(ctx context.Context, sessionID string) (*Feedback, error)

	// List returns reviews newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of reviews.
	Count(ctx context.Context) (int64, error)

	// AgreementRate returns the fraction of reviews that agreed with the
	// engine, or 0 when no reviews exist.
	AgreementRate(ctx context.Context) (float64, error)

	// Delete removes a review by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes all reviews to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads reviews from a JSON reader, skipping sessions that
	// already have one. Returns the number imported and skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export is the JSON export envelope.
type Export struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}
