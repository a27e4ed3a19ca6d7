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
	"github.com/readmit-ai/hrp/pkg/common/config"
	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/observability/metrics"
	"github.com/readmit-ai/hrp/pkg/scoring"
	"github.com/readmit-ai/hrp/pkg/web"
	"github.com/readmit-ai/hrp/pkg/web/middleware"
)

func main() {
	logger.Init()
	cfg := config.Load()

	model, err := scoring.NewModel(cfg.ScoringArtifactPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.ScoringArtifactPath).Fatal("Failed to load model artifact")
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(metrics.Middleware)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", web.HealthCheck).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	scoring.NewHTTPHandler(model).Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ScoringPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":     cfg.ServerHost,
			"port":     cfg.ScoringPort,
			"artifact": cfg.ScoringArtifactPath,
		}).Info("Prediction Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Prediction Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Prediction Service stopped")
}
