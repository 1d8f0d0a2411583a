package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"classgroups-server-go/config"
	"classgroups-server-go/db"
	"classgroups-server-go/handlers"
	"classgroups-server-go/metrics"
	"classgroups-server-go/session"
)

// seeder is implemented by stores that can add demo data.
type seeder interface {
	SeedData(ctx context.Context) error
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	config.SetupLogging(cfg.Log)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open roster store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("Error closing roster store")
		}
	}()

	// --- Add demo data on an empty store ---
	if cfg.Seed.Demo {
		if s, ok := store.(seeder); ok {
			if err := s.SeedData(ctx); err != nil {
				log.WithError(err).Warn("Could not seed demo data")
			}
		}
	}

	var (
		recorder       metrics.Recorder = metrics.NopRecorder{}
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		recorder = metrics.NewCollector(prometheus.DefaultRegisterer, "")
		metricsHandler = promhttp.Handler()
	}

	apiHandler := handlers.NewAPIHandler(store, session.NewRegistry(nil), recorder, cfg.Grouping)
	router := handlers.NewRouter(apiHandler, metricsHandler)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}

func openStore(ctx context.Context, cfg config.Config) (db.RosterStore, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		store, err := db.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		client, err := db.InitializeRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return db.NewRedisService(client), nil
	}
}
