package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/event-comb/app/api"
	"github.com/lysyi3m/event-comb/app/cfg"
	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/extract"
	"github.com/lysyi3m/event-comb/app/operation"
	"github.com/lysyi3m/event-comb/app/sources"
	"github.com/lysyi3m/event-comb/app/tasks"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load configuration from environment variables and command-line flags
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	log.Printf("Starting Event Comb server (version %s)...", appCfg.Version)

	// Database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer db.Close()
	log.Println("Connected to database successfully")

	// Run schema migrations
	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	log.Printf("Database schema at version %d (dirty: %v)", version, dirty)

	// Initialize repositories
	operationRepo := database.NewOperationRepository(db)
	eventRepo := database.NewParsedEventRepository(db)
	cityRepo := database.NewCityRepository(db)

	// Initialize source adapters
	backend := extract.NewHTTPBackend(appCfg.UserAgent, 30*time.Second)

	fienta, err := sources.NewFientaAdapter(appCfg.SourcesDir)
	if err != nil {
		log.Fatal("Failed to configure Fienta adapter: ", err)
	}
	kontramarka, err := sources.NewKontramarkaAdapter(appCfg.SourcesDir, appCfg.WorkerCount)
	if err != nil {
		log.Fatal("Failed to configure Kontramarka adapter: ", err)
	}
	eventim := sources.NewEventimAdapter(appCfg.EventimURL, appCfg.EventimUsername,
		appCfg.EventimPassword, appCfg.CacheDir, appCfg.UserAgent)

	registry := sources.NewRegistry(fienta, kontramarka, eventim)
	manager := operation.NewManager(operationRepo, eventRepo)

	// Initialize and start the task scheduler
	log.Printf("Starting background scheduler with %d workers...", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize HTTP server
	log.Println("Initializing HTTP server...")
	handler := api.NewHandler(manager, registry, operationRepo, eventRepo, cityRepo, backend, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		log.Printf("API endpoints available:")
		log.Printf("  Health check:  http://localhost:%s/health", appCfg.Port)
		log.Printf("  Statistics:    http://localhost:%s/stats", appCfg.Port)

		if appCfg.APIAccessKey != "" {
			log.Printf("  Create:        http://localhost:%s/parsing/create (POST, requires API key)", appCfg.Port)
			log.Printf("  Results:       http://localhost:%s/parsing/results/<operationId> (requires API key)", appCfg.Port)
			log.Printf("  Operations:    http://localhost:%s/parsing/operations (requires API key)", appCfg.Port)
			log.Printf("  Cleanup:       http://localhost:%s/parsing/cleanup (POST, requires API key)", appCfg.Port)
		} else {
			log.Printf("  Parsing endpoints: DISABLED (API_ACCESS_KEY not set)")
		}

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Event Comb server started successfully!")
	log.Println("Press Ctrl+C to shutdown gracefully...")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	// Graceful shutdown
	log.Println("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	log.Println("Background scheduler stopped")

	log.Println("Event Comb server shutdown complete")
}
