package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/config"
	"github.com/fenilmodi00/fingerprint-kiosk/database"
	"github.com/fenilmodi00/fingerprint-kiosk/handlers"
	"github.com/fenilmodi00/fingerprint-kiosk/jobs"
	"github.com/fenilmodi00/fingerprint-kiosk/services"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	unified := cfg.Unified()
	shared.ConfigureLogging(unified.Logging)

	// Relay store for callback results
	var relay services.ResultStore
	var db *sql.DB
	var dbCheck func(ctx context.Context) error

	switch unified.Store.Backend {
	case config.StoreBackendPostgres:
		if err := database.ConnectWithConfig(cfg.DatabaseURL, &unified.Database); err != nil {
			logrus.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := database.Migrate(migrateCtx, database.DB); err != nil {
			cancel()
			logrus.Fatalf("Migration failed: %v", err)
		}
		cancel()

		db = database.DB
		dbCheck = database.HealthCheck
		relay = services.NewPostgresResultStore(database.DB)
	default:
		relay = services.NewMemoryResultStore(unified.Store.MaxSize)
	}

	callbackMetrics := shared.NewServiceMetrics("CallbackService")
	lookupMetrics := shared.NewServiceMetrics("RelayLookup")
	scanMetrics := shared.NewServiceMetrics("ScanDispatcher")
	pollMetrics := shared.NewServiceMetrics("ResultPoller")
	cleanupMetrics := shared.NewServiceMetrics("ResultCleanupJob")

	tokens := services.NewTokenGenerator()
	normalizer := services.NewNormalizer()

	callbackService := services.NewCallbackService(relay, normalizer, tokens, unified.Store.RelayTTL, callbackMetrics)
	relayLookup := services.NewRelayLookup(relay, lookupMetrics)

	// Outbound clients: the scanner device and this server's own lookup endpoint
	clients := shared.NewHTTPClientFactory(unified.Scanner.HTTPRequestTimeout)
	defer clients.CleanupAllClients()

	scannerClient := services.NewScannerClient(
		clients.Client(shared.HTTPClientConfig{
			BaseURL:          unified.Scanner.BaseURL,
			Timeout:          unified.Scanner.HTTPRequestTimeout,
			MaxRetryAttempts: unified.Scanner.MaxRetryAttempts,
		}),
		cfg.CallbackURL(),
		unified.Scanner.RequestRateLimit,
	)
	lookupClient := services.NewHTTPLookupClient(
		clients.Client(shared.HTTPClientConfig{
			BaseURL:          unified.Lookup.BaseURL,
			Timeout:          unified.Lookup.HTTPRequestTimeout,
			MaxRetryAttempts: unified.Lookup.MaxRetryAttempts,
		}),
	)

	dispatcher := services.NewScanDispatcher(scannerClient, tokens, scanMetrics)
	poller := services.NewResultPoller(lookupClient, unified.Polling.Interval, unified.Polling.Timeout, pollMetrics)
	clientStore := services.NewClientResultStore(services.NewMemorySessionStorage())
	kiosk := services.NewKioskService(dispatcher, poller, clientStore, normalizer, unified.Store.ClientTTL)

	directory, err := services.LoadFacilityDirectory(cfg.FacilityDataPath)
	if err != nil {
		logrus.Fatalf("Failed to load facility directory: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"store_backend": unified.Store.Backend,
		"relay_ttl":     unified.Store.RelayTTL,
		"client_ttl":    unified.Store.ClientTTL,
		"poll_interval": unified.Polling.Interval,
		"poll_timeout":  unified.Polling.Timeout,
		"scanner_url":   unified.Scanner.BaseURL,
		"callback_url":  cfg.CallbackURL(),
		"cities":        len(directory.Cities()),
	}).Info("Kiosk services initialized")

	// Background jobs
	cleanupJob := jobs.NewResultCleanupJob(map[string]services.ResultStore{
		"relay":  relay,
		"client": clientStore,
	}, kiosk, unified.Store.CleanupInterval, cleanupMetrics)
	cleanupJob.Start()

	// Setup Fiber
	app := handlers.NewApp()
	routes := &handlers.Routes{
		Callback:   handlers.NewCallbackHandler(callbackService),
		Results:    handlers.NewResultsHandler(relayLookup, kiosk, directory),
		Scan:       handlers.NewScanHandler(kiosk),
		Facilities: handlers.NewFacilityHandler(directory),
		Metrics:    handlers.NewMetricsHandler(db, callbackMetrics, lookupMetrics, scanMetrics, pollMetrics, cleanupMetrics),
		Health:     handlers.NewHealthHandler(unified.Store.Backend, dbCheck),
	}
	routes.Register(app)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		logrus.Info("Shutting down server")
		kiosk.EndSession(context.Background())
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Error("Server shutdown failed")
		}
	}()

	// Start server
	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logrus.Fatalf("Server failed to start: %v", err)
	}

	cleanupJob.Stop()
	for _, m := range []*shared.ServiceMetrics{callbackMetrics, lookupMetrics, scanMetrics, pollMetrics, cleanupMetrics} {
		m.LogSummary()
	}
}
