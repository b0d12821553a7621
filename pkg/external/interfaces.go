// Package external contains the client for the remote AI diagnosis
// collaborator, with rate limiting, circuit breaking and response caching.
package external

import (
	"context"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// AIDiagnosisAPI is the raw remote diagnosis transport, implemented by
// AIDxClient and wrapped by ResilientDiagnosisClient.
type AIDiagnosisAPI interface {
	Diagnose(ctx context.Context, patient domain.PatientContext, selected []domain.SelectedSymptom) ([]domain.RemoteDiagnosis, error)
}
