package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"shotdeck/internal/client"
	"shotdeck/internal/config"
	"shotdeck/internal/log"
	"shotdeck/internal/service"
	"shotdeck/internal/store"
	"shotdeck/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	var serverURL string
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&serverURL, "server", "", "backend URL (overrides config)")
	flag.Parse()

	if showVersion {
		fmt.Printf("shotdeck %s\n", Version)
		return
	}

	if err := run(serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(serverURL string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("shotdeck requires an interactive terminal")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting shotdeck", "version", Version, "server", cfg.Server.URL)

	cache, err := store.NewDeckStore(cfg.Server.CacheDir)
	if err != nil {
		logger.Warn("cache unavailable, running memory-only", "error", err)
		cache, _ = store.NewDeckStore("")
	}
	defer cache.Close()

	repo := client.NewClient(cfg.Server.URL, logger)
	svc := service.NewProjectService(repo, cache, logger)

	model := tui.NewModel(svc, logger)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}
