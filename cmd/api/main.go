package main

import (
	"net/http"

	"github.com/joho/godotenv"

	"paperlens/internal/api"
	"paperlens/internal/config"
	"paperlens/internal/logger"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log := logger.New()
	srv := api.NewServer(cfg, log)
	log.WithField("addr", cfg.APIAddr).
		WithField("provider", cfg.ModelProvider).
		Info("paperlens api listening")
	if err := http.ListenAndServe(cfg.APIAddr, srv.Routes()); err != nil {
		log.Fatal(err)
	}
}
