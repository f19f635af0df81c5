package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"shotdeck/internal/config"
	"shotdeck/internal/log"
	"shotdeck/internal/server"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	var addr, dataDir string
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&addr, "addr", "", "listen address (overrides config)")
	flag.StringVar(&dataDir, "data", "", "data directory (overrides config)")
	flag.Parse()

	if showVersion {
		fmt.Printf("shotdeckd %s\n", Version)
		return
	}

	if err := run(addr, dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, dataDir string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if dataDir == "" {
		dataDir = cfg.Server.DataDir
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Daemon logs to stderr when the log file is unavailable
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	slog.SetDefault(logger)

	logger.Info("starting shotdeckd", "version", Version, "addr", addr, "data", dataDir)

	lib, err := server.NewLibrary(dataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(addr, lib, logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
