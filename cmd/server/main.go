package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codyseavey/tix-calc/internal/api"
	"github.com/codyseavey/tix-calc/internal/app"
	"github.com/codyseavey/tix-calc/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Local overrides are optional
	_ = godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database and services
	application, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	if !cfg.FallbackToEarliest {
		log.Println("Price resolver: cards valued before their first listing report as unavailable (set fallback_to_earliest to price them at their earliest entry)")
	}

	// Setup router
	router := api.SetupRouter(cfg, application.Valuator, application.Refresher)

	// Start background cache refresher
	if cfg.RefreshEnabled() {
		go application.Refresher.Start(ctx)
	} else {
		log.Println("Cache refresher disabled, queued refreshes will not run")
	}

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
