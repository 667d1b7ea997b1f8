package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "canvas-collab/internal/app"
	"canvas-collab/internal/collab"
	httpx "canvas-collab/internal/httpx"
	store "canvas-collab/internal/store"
	wsx "canvas-collab/internal/ws"
	"canvas-collab/pkg/auth"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.Env)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres: the project-storage side, canvas snapshots only
	pg, err := store.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("postgres connect", "err", err)
		log.Fatal(err)
	}
	defer pg.Close()
	if err := store.RunMigrations(ctx, pg, logger); err != nil {
		logger.Error("migrations", "err", err)
		log.Fatal(err)
	}

	// Optional redis bus relaying rooms across processes
	var bus *wsx.RedisBus
	if cfg.BusEnabled {
		bus, err = wsx.NewRedisBus(ctx, cfg, logger)
		if err != nil {
			logger.Error("redis connect", "err", err)
			log.Fatal(err)
		}
		defer bus.Close()
	}

	// Collaboration core: registry + broadcaster + gateway
	registry := collab.NewRegistry(logger, nil)
	defer registry.Shutdown()
	bcast := collab.NewBroadcaster(logger)
	gw := wsx.NewGateway(logger, registry, bcast, pg, bus, auth.New(cfg.JWTSecret), cfg.SnapshotDebounce)
	go gw.Run(ctx)

	// HTTP + WS router
	router := httpx.NewRouter(cfg, gw, pg)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("server.shutdown.complete")
	_ = os.Stdout.Sync()
}
