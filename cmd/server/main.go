package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/carpool/internal/carpool"
	"github.com/example/carpool/internal/config"
	"github.com/example/carpool/internal/directory"
	"github.com/example/carpool/internal/events"
	httpapi "github.com/example/carpool/internal/http"
	"github.com/example/carpool/internal/logging"
	"github.com/example/carpool/internal/snapshot"
	"github.com/example/carpool/internal/storage"
	"github.com/example/carpool/internal/wallet"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var store storage.Store
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			if err := runMigrations(cfg.PGDSN); err != nil {
				logger.Error("migrations failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		store = ps
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	engine := carpool.NewService(store, logger)
	engine.CommitRetries = cfg.CommitRetries

	wsreg := events.NewWSRegistry()
	dispatchers := events.Fanout{wsreg}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		dispatchers = append(dispatchers, kp)
	}
	engine.Dispatch = dispatchers

	if cfg.RedisAddr != "" {
		snaps := snapshot.NewCache(cfg.RedisAddr, cfg.RedisPassword)
		defer snaps.Close()
		engine.Snapshots = snaps
	}
	if cfg.StripeAPIKey != "" {
		engine.Wallet = wallet.NewStripeLedger(cfg.StripeAPIKey, cfg.StripeCurrency)
	}

	var dir *directory.Client
	if cfg.DirectoryEndpoint != "" {
		dir = directory.NewClient(cfg.DirectoryEndpoint)
	}

	api := httpapi.NewServer(engine, dir, engine.Snapshots, wsreg, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("carpool api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}
