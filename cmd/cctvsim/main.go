package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/care/homehub/internal/capture"
	"github.com/care/homehub/internal/capture/gstfile"
	"github.com/care/homehub/internal/config"
	"github.com/care/homehub/internal/streamer"
)

const defaultConfigPath = "config/homehub.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listen := flag.String("listen", "", "Override streamer listen address")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting cctv simulator",
		"config", *configPath,
		"debug", *debug,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Streamer.Listen = *listen
	}
	if len(cfg.Streamer.Cameras) == 0 {
		slog.Warn("no cameras configured, only snapshot and health endpoints will answer")
	}

	width, height := cfg.Streamer.Width, cfg.Streamer.Height
	openFile := func(ctx context.Context, camera, path string) (capture.Source, error) {
		loop, err := gstfile.OpenFile(ctx, gstfile.FileConfig{
			Path:   path,
			Width:  width,
			Height: height,
			Source: camera,
		})
		if err != nil {
			return nil, err
		}
		return loop, nil
	}

	srv, err := streamer.New(cfg.Streamer, streamer.WithOpenFunc(openFile))
	if err != nil {
		slog.Error("failed to create streamer", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		if err != nil {
			slog.Error("streamer error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownTimeout := cfg.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("cctv simulator stopped successfully")
}
