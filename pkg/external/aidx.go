package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/symptom-diagnosis-server/internal/domain"
)

// AIDxClient calls the remote AI diagnosis service. The engine only consumes
// the service's ranked output; how that ranking is computed is owned remotely.
type AIDxClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// diagnoseRequest is the wire request of the remote service.
type diagnoseRequest struct {
	Age             int               `json:"age"`
	Gender          string            `json:"gender,omitempty"`
	ChronicDiseases []string          `json:"chronic_diseases,omitempty"`
	Symptoms        []symptomSelector `json:"symptoms"`
}

type symptomSelector struct {
	SymptomID string `json:"symptom_id"`
	Severity  string `json:"severity"`
}

// diagnoseResponse is the wire response of the remote service.
type diagnoseResponse struct {
	Diagnoses []struct {
		DiseaseName string  `json:"disease_name"`
		Probability float64 `json:"probability"`
		Advice      string  `json:"advice"`
	} `json:"diagnoses"`
}

// NewAIDxClient creates a remote diagnosis client from the service config.
func NewAIDxClient(config domain.AIDiagnosisConfig) *AIDxClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	return &AIDxClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Diagnose forwards the session to the remote service and returns its ranked
// diagnoses. Patient context is sent once per call and never persisted here.
func (c *AIDxClient) Diagnose(
	ctx context.Context,
	patient domain.PatientContext,
	selected []domain.SelectedSymptom,
) ([]domain.RemoteDiagnosis, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("symptom selection cannot be empty")
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	reqBody := diagnoseRequest{
		Age:             patient.Age,
		Gender:          string(patient.Gender),
		ChronicDiseases: patient.ChronicDiseases,
		Symptoms:        make([]symptomSelector, 0, len(selected)),
	}
	for _, sel := range selected {
		reqBody.Symptoms = append(reqBody.Symptoms, symptomSelector{
			SymptomID: sel.SymptomID,
			Severity:  sel.Severity.String(),
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling diagnose request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/diagnose", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating diagnose request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Symptom-Diagnosis-Server/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing diagnose request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote diagnosis service returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading diagnose response: %w", err)
	}

	var parsed diagnoseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing diagnose response: %w", err)
	}

	diagnoses := make([]domain.RemoteDiagnosis, 0, len(parsed.Diagnoses))
	for _, d := range parsed.Diagnoses {
		if d.DiseaseName == "" {
			continue
		}
		diagnoses = append(diagnoses, domain.RemoteDiagnosis{
			DiseaseName: d.DiseaseName,
			Probability: d.Probability,
			Advice:      d.Advice,
		})
	}

	return diagnoses, nil
}
