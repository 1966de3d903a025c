package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nutri-planner/app"
	"nutri-planner/config"
	"nutri-planner/handlers"
	"nutri-planner/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		panic("logger init failed: " + err.Error())
	}
	log := logger.L()
	defer log.Sync()

	cfg := config.Load(log)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	state, err := app.Open(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("storage connection failed", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer state.Close(context.Background())

	if state.Google == nil {
		log.Info("Google sign-in disabled, GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set")
	}

	r := handlers.SetupRouter(state)
	log.Info("starting server", zap.String("port", cfg.Port), zap.String("timezone", cfg.Location.String()))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("server failed to start", zap.Error(err))
	}
}
