package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/symptom-diagnosis-server/internal/api"
	"github.com/symptom-diagnosis-server/internal/caching"
	"github.com/symptom-diagnosis-server/internal/config"
	"github.com/symptom-diagnosis-server/internal/database"
	"github.com/symptom-diagnosis-server/internal/domain"
	"github.com/symptom-diagnosis-server/internal/feedback"
	"github.com/symptom-diagnosis-server/internal/repository"
	"github.com/symptom-diagnosis-server/internal/service"
	"github.com/symptom-diagnosis-server/pkg/external"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting symptom diagnosis server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rule store pool and schema.
	dbConfig := database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		Database:    cfg.Database.Database,
		Username:    cfg.Database.Username,
		Password:    cfg.Database.Password,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    int32(cfg.Database.MaxOpenConns),
		MinConns:    int32(cfg.Database.MaxIdleConns),
		MaxConnLife: cfg.Database.ConnMaxLifetime,
	}

	migrator, err := database.NewMigrationRunner(dbConfig.ConnString(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if err := migrator.Up(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to run rule store migrations")
	}
	if err := migrator.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close migration runner")
	}

	db, err := database.NewConnection(ctx, dbConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to rule store")
	}
	defer db.Close()

	ruleStore := repository.NewPostgresRuleStore(db.Pool, logger)
	resolver, err := service.NewCachedSnapshotResolver(ruleStore, logger, 4, cfg.Cache.SnapshotTTL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create snapshot resolver")
	}

	// Remote AI collaborator, optional.
	var remote *external.ResilientDiagnosisClient
	if cfg.ExternalAPI.AIDiagnosis.Enabled {
		var responseCache *external.CacheClient
		if cfg.Cache.Enabled {
			responseCache, err = external.NewCacheClient(cfg.Cache)
			if err != nil {
				logger.WithError(err).Warn("Remote diagnosis cache unavailable, continuing without it")
				responseCache = nil
			}
		}
		remote = external.NewResilientDiagnosisClient(
			external.NewAIDxClient(cfg.ExternalAPI.AIDiagnosis), responseCache, logger)
		logger.Info("Remote AI diagnosis provider enabled")
	}

	// Result cache, optional. The redis tier is best-effort: if the client
	// cannot be built the cache stays memory-only.
	var resultCache service.ResultCache
	if cfg.Cache.Enabled {
		var redisClient *redis.Client
		if opts, err := redis.ParseURL(cfg.Cache.RedisURL); err != nil {
			logger.WithError(err).Warn("Invalid redis URL, result cache stays memory-only")
		} else {
			redisClient = redis.NewClient(opts)
		}

		cache, err := caching.NewResultCache(caching.ResultCacheConfig{
			RedisClient: redisClient,
			TTL:         cfg.Cache.DefaultTTL,
			Enabled:     true,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create result cache")
		}
		resultCache = cache
	}

	filter := service.NewContraindicationFilter(logger)
	diagnosis := service.NewDiagnosisService(
		resolver,
		service.NewCandidateScorer(logger, cfg.Scoring),
		service.NewUrgencyClassifier(logger),
		filter,
		service.NewResultComposer(logger, filter),
		remoteOrNil(remote),
		resultCache,
		logger,
	)

	feedbackStore, err := newFeedbackStore(cfg.Feedback)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open feedback store")
	}
	defer feedbackStore.Close()

	server := api.NewServer(configManager, diagnosis, feedbackStore, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

func newFeedbackStore(cfg domain.FeedbackConfig) (feedback.Store, error) {
	if cfg.Backend == "postgres" {
		return feedback.NewPostgresStoreFromURL(cfg.PostgresURL)
	}
	return feedback.NewSQLiteStore(cfg.SQLitePath)
}

// remoteOrNil keeps a typed nil pointer from becoming a non-nil interface.
func remoteOrNil(remote *external.ResilientDiagnosisClient) domain.RemoteDiagnosisProvider {
	if remote == nil {
		return nil
	}
	return remote
}
