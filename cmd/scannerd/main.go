package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aftab97/qr-inventory-scanner/internal/api"
	"github.com/aftab97/qr-inventory-scanner/internal/capture"
	"github.com/aftab97/qr-inventory-scanner/internal/config"
	"github.com/aftab97/qr-inventory-scanner/internal/decode"
	"github.com/aftab97/qr-inventory-scanner/internal/emitter"
	"github.com/aftab97/qr-inventory-scanner/internal/inventory"
	"github.com/aftab97/qr-inventory-scanner/internal/scan"
)

const defaultConfigPath = "config/scanner.yaml"

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup structured logger
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting scanner station",
		"config", *configPath,
		"debug", *debug,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded", "station_id", cfg.StationID)

	// Frame source: real camera when a device is configured, synthetic
	// otherwise (headless bring-up without hardware).
	var source capture.Source
	if cfg.Camera.Device != "" {
		width, height := cfg.Resolution()
		gstSource, err := capture.NewGStreamerSource(capture.CameraConfig{
			Device:       cfg.Camera.Device,
			NativeWidth:  width,
			NativeHeight: height,
			Torch:        cfg.Camera.Torch,
		})
		if err != nil {
			slog.Error("failed to create camera source", "error", err)
			os.Exit(1)
		}
		source = gstSource
	} else {
		source = capture.NewSyntheticSource()
		slog.Warn("no camera device configured, using synthetic source")
	}

	tuning := decode.Tuning{
		Contrast:            cfg.Scan.Contrast,
		SharpenAmount:       cfg.Scan.SharpenAmount,
		AdaptiveWindow:      cfg.Scan.AdaptiveWindow,
		AdaptiveSensitivity: cfg.Scan.AdaptiveSensitivity,
		CloseIterations:     cfg.Scan.CloseIterations,
	}
	runner := decode.NewRunner(decode.NewZXing(), tuning.Strategies())

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Connect MQTT emitter
	em := emitter.NewMQTTEmitter(cfg)
	if err := em.Connect(ctx); err != nil {
		slog.Error("failed to connect mqtt", "error", err)
		os.Exit(1)
	}

	// Inventory backend is optional; without it the station only
	// publishes scan events.
	var directory scan.ItemDirectory
	if cfg.Inventory.BaseURL != "" {
		client, err := inventory.NewClient(cfg.Inventory.BaseURL, time.Duration(cfg.Inventory.TimeoutS)*time.Second)
		if err != nil {
			slog.Error("failed to create inventory client", "error", err)
			os.Exit(1)
		}
		directory = client
	} else {
		slog.Warn("no inventory backend configured, scans are publish-only")
	}

	service, err := scan.NewService(source, runner, em, directory, scan.ServiceConfig{
		StationID:  cfg.StationID,
		Interval:   time.Duration(cfg.Scan.IntervalMS) * time.Millisecond,
		RearmDelay: time.Duration(cfg.Scan.RearmDelayMS) * time.Millisecond,
	})
	if err != nil {
		slog.Error("failed to create scan service", "error", err)
		os.Exit(1)
	}

	// Start health/status HTTP server (non-blocking)
	apiServer, err := api.NewServer(cfg.HTTP.Addr, service, em)
	if err != nil {
		slog.Error("failed to create http server", "error", err)
		os.Exit(1)
	}
	apiServer.Start()

	// Run service in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- service.Run(ctx) // Always send, even if nil
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			slog.Error("service error", "error", err)
		} else {
			slog.Info("service stopped")
		}
	}

	// Graceful shutdown
	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutS) * time.Second
	if shutdownTimeout == 0 {
		shutdownTimeout = 5 * time.Second
	}
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	if err := service.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	if err := em.Disconnect(); err != nil {
		slog.Error("mqtt disconnect failed", "error", err)
	}

	slog.Info("scanner station stopped successfully")
}
