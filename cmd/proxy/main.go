package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	proxy "github.com/netviz-ai/edge-proxy"
)

func main() {
	configFile := flag.String("config", getEnvOrDefault("CONFIG_FILE", "config.yaml"), "path to the YAML configuration file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()

	// Listener addresses from the environment override the config file
	opts := []proxy.Option{
		proxy.WithName(getEnvOrDefault("SERVER_NAME", "edge-proxy")),
		proxy.WithLogger(logger),
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		opts = append(opts, proxy.WithAddr(addr))
	}
	if addr := os.Getenv("ADMIN_ADDR"); addr != "" {
		opts = append(opts, proxy.WithAdminAddr(addr))
	}

	// Create the edge router from configuration
	srv, err := proxy.NewServerFromConfigFile(*configFile, opts...)
	if err != nil {
		logger.Error("Failed to create proxy", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	// Start proxy
	if err := srv.Start(ctx); err != nil {
		logger.Error("Failed to start proxy", "error", err)
		os.Exit(1)
	}

	logger.Info("Server started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutting down proxy...")
}

// logLevel reads LOG_LEVEL, defaulting to info
func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnvOrDefault returns the value of the environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
