package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mispbot/mastodon-misp-bot/internal/config"
	"github.com/mispbot/mastodon-misp-bot/internal/intel"
	"github.com/mispbot/mastodon-misp-bot/internal/mastodon"
	"github.com/mispbot/mastodon-misp-bot/internal/misp"
	"github.com/mispbot/mastodon-misp-bot/internal/parser"
	"github.com/mispbot/mastodon-misp-bot/internal/processor"
	"github.com/mispbot/mastodon-misp-bot/internal/scheduler"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logrus.Fatalf("Failed to open log file %s: %v", cfg.LogFile, err)
		}
		defer logFile.Close()
		logrus.SetOutput(logFile)
	}

	logrus.Infof("Init bot %s", cfg.MastodonUsername)

	mastodonClient := mastodon.NewClient(mastodon.Options{
		BaseURL:     cfg.MastodonBaseURL,
		AccessToken: cfg.MastodonAccessToken,
		MaxMentions: cfg.MaxMentions,
		Timeout:     cfg.HTTPTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	account, err := mastodonClient.ResolveAccount(ctx, cfg.MastodonUsername)
	cancel()
	if err != nil {
		logrus.Fatalf("Unable to find account ID for %s: %v", cfg.MastodonUsername, err)
	}
	logrus.Debugf("Running as account %s (%s)", account.ID, account.URL)

	mispClient := misp.NewClient(misp.Options{
		URL:        cfg.MISPURL,
		Key:        cfg.MISPKey,
		VerifyCert: cfg.MISPVerifyCert,
		Timeout:    cfg.HTTPTimeout,
	})

	intelService := intel.NewService(mispClient, intel.PolicyFromConfig(cfg))
	processorService := processor.NewService(cfg, mastodonClient, intelService, parser.New(cfg.Commands))

	if cfg.RunSchedule == "" {
		processorService.Run(context.Background())
		logrus.Infof("Stop bot %s", cfg.MastodonUsername)
		return
	}

	runDaemon(cfg, processorService)
}

// runDaemon repeats batch runs on the schedule and serves health endpoints until interrupted
func runDaemon(cfg *config.Config, processorService *processor.Service) {
	schedulerService := scheduler.NewService(cfg, processorService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      newRouter(processorService, schedulerService.RunOnce),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Infof("Stop bot %s", cfg.MastodonUsername)
}

type metricsSource interface {
	GetMetrics() string
}

func newRouter(metrics metricsSource, trigger func()) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(metrics)).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(trigger)).Methods("POST")
	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(metrics metricsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(metrics.GetMetrics()))
	}
}

func triggerHandler(trigger func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go trigger()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message":"Mention run triggered"}`))
	}
}
