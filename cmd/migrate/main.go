package main

import (
	"context"

	"github.com/joho/godotenv"

	"paperlens/internal/config"
	"paperlens/internal/logger"
	"paperlens/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log := logger.New()
	if err := storage.Migrate(context.Background(), cfg.PostgresURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Info("migrations applied")
}
