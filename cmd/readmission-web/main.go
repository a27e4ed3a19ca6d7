package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/readmit-ai/hrp/pkg/auditlog"
	"github.com/readmit-ai/hrp/pkg/catalog"
	"github.com/readmit-ai/hrp/pkg/common/config"
	"github.com/readmit-ai/hrp/pkg/common/database"
	"github.com/readmit-ai/hrp/pkg/common/httpclient"
	"github.com/readmit-ai/hrp/pkg/common/kafka"
	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/dlp"
	"github.com/readmit-ai/hrp/pkg/events"
	"github.com/readmit-ai/hrp/pkg/handoff"
	"github.com/readmit-ai/hrp/pkg/observability/metrics"
	"github.com/readmit-ai/hrp/pkg/prediction"
	"github.com/readmit-ai/hrp/pkg/results"
	"github.com/readmit-ai/hrp/pkg/web"
	"github.com/readmit-ai/hrp/pkg/web/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const sweepInterval = time.Minute

func main() {
	logger.Init()
	cfg := config.Load()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.CatalogPath).Warn("Failed to load catalog, using defaults")
		cat = catalog.DefaultCatalog()
	}

	// Intake -> results handoff
	var (
		handoffs    handoff.Store
		redisClient *redis.Client
	)
	switch cfg.HandoffBackend {
	case "redis":
		redisClient, err = database.NewRedis(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to Redis")
		}
		handoffs = handoff.NewRedisStore(redisClient, cfg.HandoffTTL)
	default:
		handoffs = handoff.NewMemoryStore(cfg.HandoffTTL)
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	httpClient := httpclient.WithClientCredentials(rootCtx, httpclient.New(cfg.PredictionTimeout), httpclient.ClientCredentials{
		TokenURL:     cfg.PredictionTokenURL,
		ClientID:     cfg.PredictionClientID,
		ClientSecret: cfg.PredictionClientSecret,
		Scopes:       cfg.PredictionScopes,
	})
	predictor := prediction.NewClient(cfg.PredictionServiceURL, httpClient)

	// Outcome observers
	rules, err := dlp.LoadRules(cfg.DLPRulesPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.DLPRulesPath).Warn("Failed to load DLP rules, using defaults")
		rules = dlp.DefaultRules()
	}
	redactor, err := dlp.NewRedactor(rules)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid DLP rules")
	}

	observers := []results.Observer{metrics.OutcomeObserver{}}

	var producer *kafka.Producer
	if cfg.EventsEnabled {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic)
		observers = append(observers, events.NewOutcomeObserver(producer, 5*time.Second).WithRedactor(redactor))
	}

	var db *gorm.DB
	if cfg.AuditLogEnabled {
		db, err = database.OpenPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to database")
		}
		repo := auditlog.NewRepository(db).WithRedactor(redactor)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate prediction log table")
		}
		observers = append(observers, repo)
	}

	registry := results.NewRegistry(predictor, cat.RecommendationsFor, cfg.VisitTTL, observers...)
	go registry.Run(rootCtx, sweepInterval)

	pages, err := web.NewHTTPHandler(web.Options{
		Catalog:      cat,
		Handoffs:     handoffs,
		Visits:       registry,
		LoadingGrace: cfg.LoadingGrace,
		CookieSecure: cfg.CookieSecure,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to parse page templates")
	}

	// Setup router
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.SecurityHeaders)
	router.Use(metrics.Middleware)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	router.HandleFunc("/health", web.HealthCheck).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.CORS)
	web.NewAPIHandler(registry).Register(apiRouter)

	pages.Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":            cfg.ServerHost,
			"port":            cfg.ServerPort,
			"prediction_url":  cfg.PredictionServiceURL,
			"handoff_backend": cfg.HandoffBackend,
		}).Info("Readmission web started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Readmission web...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	stop()
	registry.CloseAll()

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Log.WithError(err).Warn("Failed to close event producer")
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Log.WithError(err).Warn("Failed to close Redis client")
		}
	}
	if db != nil {
		if err := database.ClosePostgres(db); err != nil {
			logger.Log.WithError(err).Warn("Failed to close database")
		}
	}

	logger.Log.Info("Readmission web stopped")
}
