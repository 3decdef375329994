// migrate applies the table store schema; use with go run ./cmd/migrate -direction up|down.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Starlight90415/O-quvbot/internal/config"
	"github.com/Starlight90415/O-quvbot/internal/db/migrate"
	"github.com/Starlight90415/O-quvbot/internal/platform/logging"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set")
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := migrate.Run(cfg.DatabaseURL, *direction, log); err != nil {
		log.Sugar().Errorw("migrate failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
	log.Sugar().Infow("migrations applied", "direction", *direction)
}
