// Package api exposes the diagnosis engine over HTTP. All endpoints are
// stateless: patient context travels in the request body and is never
// persisted server-side.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/domain"
	"github.com/symptom-diagnosis-server/internal/feedback"
	"github.com/symptom-diagnosis-server/internal/middleware"
	"github.com/symptom-diagnosis-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	diagnosis     *service.DiagnosisService
	feedbackStore feedback.Store
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance. feedbackStore may be nil; the
// feedback endpoints then report the feature as unavailable.
func NewServer(
	configManager domain.ConfigManager,
	diagnosis *service.DiagnosisService,
	feedbackStore feedback.Store,
	logger *logrus.Logger,
) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(cfg.Server.ReadTimeout + cfg.Server.WriteTimeout))

	server := &Server{
		configManager: configManager,
		diagnosis:     diagnosis,
		feedbackStore: feedbackStore,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/diagnose", s.handleDiagnose)
		v1.POST("/urgency", s.handleUrgency)
		v1.POST("/treatments/check", s.handleTreatmentCheck)
		v1.POST("/diagnose/remote-match", s.handleRemoteMatch)
		v1.GET("/rules/version", s.handleRulesVersion)

		v1.POST("/feedback", s.handleSubmitFeedback)
		v1.GET("/feedback/stats", s.handleFeedbackStats)
	}
}

// diagnoseRequest is the wire form of one full evaluation request.
type diagnoseRequest struct {
	Patient  domain.PatientContext    `json:"patient"`
	Symptoms []domain.SelectedSymptom `json:"symptoms"`
	FollowUp map[string]interface{}   `json:"follow_up,omitempty"`
	Limit    int                      `json:"limit,omitempty"`
}

type urgencyRequest struct {
	Patient  domain.PatientContext    `json:"patient"`
	Symptoms []domain.SelectedSymptom `json:"symptoms"`
}

type treatmentCheckRequest struct {
	ConditionID string                `json:"condition_id" binding:"required"`
	Patient     domain.PatientContext `json:"patient"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	version, err := s.diagnosis.RulesVersion(c.Request.Context())
	if err != nil {
		status["status"] = "degraded"
		status["rule_store"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	status["rules_version"] = version

	c.JSON(http.StatusOK, status)
}

// handleDiagnose runs the full local evaluation pipeline.
func (s *Server) handleDiagnose(c *gin.Context) {
	var req diagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("body", "invalid request body", err.Error()))
		return
	}

	result, err := s.diagnosis.Diagnose(c.Request.Context(), service.DiagnoseParams{
		Patient:  req.Patient,
		Symptoms: req.Symptoms,
		FollowUp: req.FollowUp,
		Limit:    req.Limit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleUrgency classifies urgency without candidate scoring.
func (s *Server) handleUrgency(c *gin.Context) {
	var req urgencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("body", "invalid request body", err.Error()))
		return
	}

	urgency, actions, err := s.diagnosis.ClassifyUrgency(c.Request.Context(), req.Patient, req.Symptoms)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"urgency":             urgency,
		"recommended_actions": actions,
	})
}

// handleTreatmentCheck filters a condition's treatments for a patient.
func (s *Server) handleTreatmentCheck(c *gin.Context) {
	var req treatmentCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("body", "invalid request body", err.Error()))
		return
	}

	treatments, consultPhysician, err := s.diagnosis.CheckTreatments(c.Request.Context(), req.ConditionID, req.Patient)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"condition_id": req.ConditionID,
		"treatments":   treatments,
		// Set only when filtering removed every treatment the condition has;
		// a treatmentless condition is not a consult-physician state.
		"consult_physician": consultPhysician,
	})
}

// handleRemoteMatch forwards the session to the external AI collaborator.
func (s *Server) handleRemoteMatch(c *gin.Context) {
	var req urgencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("body", "invalid request body", err.Error()))
		return
	}

	matches, err := s.diagnosis.MatchRemoteDiagnoses(c.Request.Context(), req.Patient, req.Symptoms)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// handleRulesVersion reports the active rule snapshot version.
func (s *Server) handleRulesVersion(c *gin.Context) {
	version, err := s.diagnosis.RulesVersion(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"version": version})
}

// handleSubmitFeedback stores a clinician review of a diagnosis session.
func (s *Server) handleSubmitFeedback(c *gin.Context) {
	if s.feedbackStore == nil {
		s.respondError(c, domain.NewEngineError(domain.ErrInternalServer,
			"feedback store not configured", "", c.GetString("correlation_id")))
		return
	}

	var review feedback.Feedback
	if err := c.ShouldBindJSON(&review); err != nil {
		s.respondError(c, domain.NewValidationError("body", "invalid request body", err.Error()))
		return
	}

	if err := s.feedbackStore.Save(c.Request.Context(), &review); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// handleFeedbackStats reports aggregate clinician agreement.
func (s *Server) handleFeedbackStats(c *gin.Context) {
	if s.feedbackStore == nil {
		s.respondError(c, domain.NewEngineError(domain.ErrInternalServer,
			"feedback store not configured", "", c.GetString("correlation_id")))
		return
	}

	count, err := s.feedbackStore.Count(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	rate, err := s.feedbackStore.AgreementRate(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":          count,
		"agreement_rate": rate,
	})
}

// respondError maps engine errors onto HTTP status codes with a uniform body.
func (s *Server) respondError(c *gin.Context, err error) {
	correlationID := c.GetString("correlation_id")

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, domain.NewEngineError(
			domain.ErrValidation, validationErr.Message, validationErr.Field, correlationID))
		return
	}

	var engineErr *domain.EngineError
	if errors.As(err, &engineErr) {
		if engineErr.RequestID == "" {
			engineErr.RequestID = correlationID
		}
		if engineErr.Timestamp.IsZero() {
			engineErr.Timestamp = time.Now().UTC()
		}
		c.JSON(statusForCode(engineErr.Code), engineErr)
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, domain.NewEngineError(
			domain.ErrEmptyResult, err.Error(), "", correlationID))
		return
	}

	s.logger.WithError(err).Error("Unhandled request error")
	c.JSON(http.StatusInternalServerError, domain.NewEngineError(
		domain.ErrInternalServer, "internal server error", "", correlationID))
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func statusForCode(code string) int {
	switch code {
	case domain.ErrInvalidInput, domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrRuleStoreUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrExternalAPI:
		return http.StatusBadGateway
	case domain.ErrEmptyResult:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
