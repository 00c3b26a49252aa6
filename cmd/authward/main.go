// Command authward runs the credential and session authority: HTTP Basic,
// session-cookie and signed-token authentication over a pluggable credential
// store.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/authward/authward/pkg/api"
	"github.com/authward/authward/pkg/auth"
	"github.com/authward/authward/pkg/config"
	"github.com/authward/authward/pkg/janitor"
	"github.com/authward/authward/pkg/observability"
	"github.com/authward/authward/pkg/storage"
	"github.com/authward/authward/pkg/storage/postgres"
	"github.com/authward/authward/pkg/storage/redisregistry"
	"github.com/authward/authward/pkg/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authward:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	accessLog := logrus.New()
	accessLog.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys, err := signingKeys(cfg, logger)
	if err != nil {
		return err
	}
	defer keys.Close()

	promRegistry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}

	health := make(map[string]observability.Pinger)

	store, users, cleanup, err := buildStore(ctx, cfg, health)
	if err != nil {
		return err
	}
	defer cleanup()
	if metrics != nil {
		store = storage.NewInstrumentedStore(store, cfg.Store.Backend, metrics.StoreLookupsTotal)
	}

	registry, err := buildRegistry(cfg, health, logger)
	if err != nil {
		return err
	}

	basic := auth.NewBasicAuthenticator(store)
	sessions := auth.NewSessionManager(store, registry, cfg.Session.TTL, nil)
	tokens := auth.NewTokenService(store, keys.Secret(), cfg.Token.Options(), nil)

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelProviders.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	sweeper := janitor.New(registry, logger, metrics, nil)
	if err := sweeper.Start(cfg.Session.SweepSchedule); err != nil {
		return fmt.Errorf("invalid sweep schedule: %w", err)
	}
	defer sweeper.Stop()

	handlers := api.NewHandlers(store, users, basic, sessions, tokens, logger, metrics)
	server := api.NewServer(cfg.Server, handlers, logger, accessLog, metrics)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(health))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, promRegistry)
	}
	healthServer := &http.Server{Addr: cfg.Server.HealthAddr(), Handler: healthMux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.ListenAndServe)
	g.Go(func() error {
		logger.WithField("addr", cfg.Server.HealthAddr()).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("API server shutdown failed")
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.WithFields(map[string]interface{}{
		"store":    cfg.Store.Backend,
		"sessions": cfg.Session.Backend,
	}).Info("authward started")
	return g.Wait()
}

func signingKeys(cfg *config.Config, logger *observability.Logger) (*config.KeyProvider, error) {
	if cfg.Token.SigningKeyFile != "" {
		return config.WatchKeyFile(cfg.Token.SigningKeyFile, logger)
	}
	return config.StaticKeyProvider([]byte(cfg.Token.SigningKey)), nil
}

// buildStore selects the credential store backend. The returned cleanup
// closes whatever the backend opened; it is a no-op for memory.
func buildStore(ctx context.Context, cfg *config.Config, health map[string]observability.Pinger) (auth.Store, auth.WritableStore, func(), error) {
	noop := func() {}

	switch cfg.Store.Backend {
	case "memory":
		var m *auth.MemoryStore
		if cfg.Store.Seed {
			m = auth.NewMemoryStore(auth.SeedUsers()...)
		} else {
			m = auth.NewMemoryStore()
		}
		return m, m, noop, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("failed to open postgres: %w", err)
		}
		pg := postgres.NewUserStore(db)
		if err := pg.Init(ctx); err != nil {
			db.Close()
			return nil, nil, noop, err
		}
		if cfg.Store.Seed {
			if err := pg.Seed(ctx, auth.SeedUsers()); err != nil {
				db.Close()
				return nil, nil, noop, err
			}
		}
		health["database"] = pg
		return cachedStore(cfg, pg), pg, func() { db.Close() }, nil

	case "sqlite":
		st, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, noop, err
		}
		if cfg.Store.Seed {
			if err := st.Seed(ctx, auth.SeedUsers()); err != nil {
				st.Close()
				return nil, nil, noop, err
			}
		}
		health["database"] = st
		return cachedStore(cfg, st), st, func() { st.Close() }, nil
	}
	return nil, nil, noop, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
}

func cachedStore(cfg *config.Config, inner auth.Store) auth.Store {
	if !cfg.Store.CacheEnabled {
		return inner
	}
	return storage.NewCachedStore(inner, cfg.Store.CacheSize, cfg.Store.CacheTTL)
}

func buildRegistry(cfg *config.Config, health map[string]observability.Pinger, logger *observability.Logger) (auth.Registry, error) {
	switch cfg.Session.Backend {
	case "memory":
		return auth.NewMemoryRegistry(nil), nil
	case "redis":
		r, err := redisregistry.New(redisregistry.Config{
			URL:      cfg.Session.RedisURL,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		health["redis"] = r
		logger.Info("session registry backed by redis")
		return r, nil
	}
	return nil, fmt.Errorf("unknown session backend: %q", cfg.Session.Backend)
}
