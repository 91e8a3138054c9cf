package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/care/homehub/internal/config"
	"github.com/care/homehub/internal/mpris"
	"github.com/care/homehub/internal/mqttclient"
	"github.com/care/homehub/internal/relay"
)

const defaultConfigPath = "config/homehub.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
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

	slog.Info("starting media relay",
		"config", *configPath,
		"debug", *debug,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	bus, err := mpris.Connect()
	if err != nil {
		slog.Error("failed to connect to session bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	broker := mqttclient.New(cfg.MQTT)
	if err := broker.Connect(ctx); err != nil {
		slog.Error("failed to connect to mqtt broker", "broker", cfg.MQTT.Broker, "error", err)
		os.Exit(1)
	}
	defer broker.Disconnect()

	r, err := relay.New(cfg, broker, relay.MPRISBus{Bus: bus}, bus.Notifier(cfg.Notify.AppName))
	if err != nil {
		slog.Error("failed to create media relay", "error", err)
		os.Exit(1)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- r.Run(ctx)
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
		runErr = <-errChan
	case runErr = <-errChan:
	}
	if runErr != nil {
		slog.Error("relay error", "error", runErr)
	}

	shutdownTimeout := cfg.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := r.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("media relay stopped successfully")
}
