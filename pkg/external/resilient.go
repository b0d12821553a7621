package external

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// ResilientDiagnosisClient wraps the raw remote client with a circuit breaker
// and an optional response cache. It is the production implementation of
// domain.RemoteDiagnosisProvider: when the remote service degrades, the
// breaker fails calls fast instead of holding diagnosis requests on a dying
// upstream.
type ResilientDiagnosisClient struct {
	api     AIDiagnosisAPI
	breaker *gobreaker.CircuitBreaker
	cache   *CacheClient
	logger  *logrus.Logger
}

// NewResilientDiagnosisClient creates a breaker-wrapped remote client. The
// cache is optional; pass nil to call the remote service on every request.
func NewResilientDiagnosisClient(api AIDiagnosisAPI, cache *CacheClient, logger *logrus.Logger) *ResilientDiagnosisClient {
	settings := gobreaker.Settings{
		Name:        "ai-diagnosis",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Remote diagnosis circuit breaker state changed")
		},
	}

	return &ResilientDiagnosisClient{
		api:     api,
		breaker: gobreaker.NewCircuitBreaker(settings),
		cache:   cache,
		logger:  logger,
	}
}

// Diagnose returns the remote ranking for the session, served from cache when
// an identical session was answered recently.
func (c *ResilientDiagnosisClient) Diagnose(
	ctx context.Context,
	patient domain.PatientContext,
	selected []domain.SelectedSymptom,
) ([]domain.RemoteDiagnosis, error) {
	if c.cache != nil {
		if cached, ok, err := c.cache.GetDiagnoses(ctx, patient, selected); err != nil {
			c.logger.WithError(err).Warn("Remote diagnosis cache lookup failed")
		} else if ok {
			return cached, nil
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.api.Diagnose(ctx, patient, selected)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("remote diagnosis service unavailable: %w", err)
		}
		return nil, err
	}

	diagnoses := result.([]domain.RemoteDiagnosis)

	if c.cache != nil {
		if err := c.cache.SetDiagnoses(ctx, patient, selected, diagnoses, 0); err != nil {
			c.logger.WithError(err).Warn("Remote diagnosis cache write failed")
		}
	}

	return diagnoses, nil
}

// State returns the current breaker state, exposed for health reporting.
func (c *ResilientDiagnosisClient) State() gobreaker.State {
	return c.breaker.State()
}
