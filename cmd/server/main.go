// Package main is the entry point for the village gacha API server.
//
// MAIN PACKAGE IN GO:
// main stays minimal. Its job is to:
//  1. Read configuration (environment, optionally a .env file)
//  2. Create the logger
//  3. Prepare the filesystem (database and upload directories)
//  4. Hand everything to internal/server and block in Start
//
// All actual logic lives in imported packages (internal/server,
// internal/service, ...), which keeps it testable without a process.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/village-gacha/internal/config"
	"github.com/sakif/village-gacha/internal/logger"
	"github.com/sakif/village-gacha/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Failing here means the process cannot run at all, and the logger is
	// not configured yet, so the error goes to a plain stderr logger.
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	// === 3. PREPARE DIRECTORIES ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			log.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if !cfg.GitHubEnabled() {
		log.Info("GITHUB_CLIENT_ID not set; GitHub sign-in is disabled")
	}

	// === 4. CREATE AND START THE SERVER ===
	// Start-up work (migrations, seeding, S3 config) gets a bounded context;
	// serving itself runs until SIGINT/SIGTERM.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
