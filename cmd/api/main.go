package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/db"
	httpx "github.com/nutriplan/nutriplan/internal/http"
	"github.com/nutriplan/nutriplan/internal/observability"
	"github.com/nutriplan/nutriplan/internal/session"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	// tracing is opt-in; a collector endpoint enables it
	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), "nutriplan-api", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(3 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("database connection failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	ctx, cancel := config.WithTimeout(5 * time.Second)
	err = db.EnsureSchema(ctx, pool)
	cancel()

	if err != nil {
		log.Error("schema bootstrap failed", "err", err)
		os.Exit(1)
	}

	// session revocation: redis when configured, in-process otherwise
	var revoker session.Revoker

	if cfg.RedisAddr != "" {
		redisRevoker := session.NewRedisRevoker(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisRevoker.Close()

		revoker = redisRevoker
	} else {
		revoker = session.NewMemoryRevoker()
	}

	router := httpx.NewRouter(log, cfg, pool, revoker)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
