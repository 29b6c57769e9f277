package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heliactyl/config"
	"heliactyl/internal/app"
	"heliactyl/internal/database"
	"heliactyl/internal/router"
	"heliactyl/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg := logger.New(cfg.LogLevel)

	a, err := app.New(cfg, lg)
	if err != nil {
		lg.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	if err := database.AutoMigrate(a.DB); err != nil {
		lg.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	if err := a.Sweeper.Start(); err != nil {
		lg.Error("sweeper failed to start", "error", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	engine := router.Setup(cfg, router.Deps{
		DB:      a.DB,
		Boosts:  a.Boosts,
		Store:   a.Store,
		Sweeper: a.Sweeper,
		Hub:     a.Hub,
		Limiter: a.RateLimiter(stop),
		Logger:  lg,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		lg.Info("server listening", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("server shutdown", "error", err)
	}
	select {
	case <-a.Sweeper.Stop().Done():
	case <-ctx.Done():
		lg.Warn("sweep still running at shutdown")
	}
	lg.Info("server stopped")
}
