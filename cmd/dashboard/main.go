// Package main provides the entrypoint for the HealthyCity dashboard.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthycity/healthycity/internal/config"
	"github.com/healthycity/healthycity/internal/dashboard"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "healthycity-dashboard"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting HealthyCity dashboard")

	cfg, err := config.LoadDashboard()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	client := dashboard.NewClient(dashboard.ClientConfig{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  log,
	})

	// Ask the gateway what it can do. A gateway that is down at startup is
	// not fatal; the locally declared kinds are used until restart.
	capCtx, capCancel := context.WithTimeout(context.Background(), 5*time.Second)
	capabilities, err := client.Capabilities(capCtx)
	capCancel()
	if err != nil {
		log.Warn().Err(err).Msg("could not fetch gateway capabilities, using local defaults")
	} else {
		log.Info().Int("kinds", len(capabilities)).Msg("gateway capabilities fetched")
	}

	srv, err := dashboard.NewServer(dashboard.ServerConfig{
		Client:       client,
		Capabilities: capabilities,
		Logger:       log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dashboard server")
	}

	// The write timeout must outlast one full gateway round trip.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("api_base_url", cfg.APIBaseURL).
			Msg("dashboard listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down dashboard")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("dashboard stopped")
}
