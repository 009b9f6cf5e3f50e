package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/mr1hm/fixr/internal/config"
	"github.com/mr1hm/fixr/internal/logging"
	"github.com/mr1hm/fixr/internal/repository"
	"github.com/mr1hm/fixr/internal/seed"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		logging.Fatalf("Failed to initialize store: %v", err)
	}
	defer repo.Close()

	res, err := seed.Run(ctx, repo, time.Now().UTC(), cfg.Worker.Count)
	if err != nil {
		logging.Fatalf("Seed failed: %v", err)
	}

	slog.Info("seed complete", "deleted", res.Deleted, "inserted", res.Inserted, "failed", res.Failed)
}
