package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yearend/internal/domain/audit"
	"yearend/internal/domain/auth"
	"yearend/internal/domain/notifications"
	"yearend/internal/domain/yearend"
	"yearend/internal/platform/config"
	"yearend/internal/platform/crypto"
	"yearend/internal/platform/db"
	"yearend/internal/platform/jobs"
	"yearend/internal/platform/metrics"
	audithandler "yearend/internal/transport/http/handlers/audit"
	notificationshandler "yearend/internal/transport/http/handlers/notifications"
	yearendhandler "yearend/internal/transport/http/handlers/yearend"
	"yearend/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Service *yearend.Service
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Router  http.Handler
}

// Routes holds what the HTTP surface needs. Ready may be nil.
type Routes struct {
	Config  config.Config
	Service *yearend.Service
	Jobs    yearendhandler.Enqueuer
	Audit   audithandler.Lister
	Notices notificationshandler.Service
	Perms   middleware.PermissionStore
	Metrics *metrics.Collector
	Ready   func(ctx context.Context) error
}

// New connects to the database, applies migrations and seed data when
// enabled, and assembles the service graph.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		applied, err := db.Migrate(ctx, pool, cfg.MigrationsDir)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		if len(applied) > 0 {
			slog.Info("migrations applied", "versions", applied)
		}
	}
	if cfg.RunSeed {
		tenantID, err := db.Seed(ctx, pool, cfg.SeedTenantName)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
		slog.Info("seed data ensured", "tenantId", tenantID)
	}

	app, err := Assemble(cfg, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return app, nil
}

// Assemble wires services over an already prepared pool.
func Assemble(cfg config.Config, pool *pgxpool.Pool) (*App, error) {
	cryptoSvc, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, err
	}
	if !cryptoSvc.Configured() {
		slog.Warn("DATA_ENCRYPTION_KEY not set; withholding slips are stored unencrypted")
	}

	collector := metrics.New()
	auditSvc := audit.New(pool)
	notifySvc := notifications.New(notifications.NewStore(pool))
	service := yearend.NewService(
		yearend.NewStore(pool),
		cfg.ReconcileWorkers,
		collector,
		yearend.WithAuditor(auditSvc),
		yearend.WithNotifier(notifySvc),
		yearend.WithCrypto(cryptoSvc),
		yearend.WithSlipDir(cfg.SlipStorageDir),
	)
	jobSvc := jobs.New(pool, cfg.ReconcileInterval, service.RunReconciliation, nil)

	app := &App{
		Config:  cfg,
		DB:      pool,
		Service: service,
		Jobs:    jobSvc,
		Metrics: collector,
	}
	app.Router = NewRouter(Routes{
		Config:  cfg,
		Service: service,
		Jobs:    jobSvc,
		Audit:   auditSvc,
		Notices: notifySvc,
		Perms:   auth.NewStore(pool),
		Metrics: collector,
		Ready:   pool.Ping,
	})
	return app, nil
}

func NewRouter(deps Routes) http.Handler {
	cfg := deps.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
	router.Use(middleware.BatchMutationRateLimit(cfg.RateLimitPerMin, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		yearendhandler.NewHandler(deps.Service, deps.Jobs, deps.Perms).RegisterRoutes(r)
		if deps.Audit != nil {
			audithandler.NewHandler(deps.Audit, deps.Perms).RegisterRoutes(r)
		}
		if deps.Notices != nil {
			notificationshandler.NewHandler(deps.Notices).RegisterRoutes(r)
		}
	})
	return router
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests and
// background jobs.
func Run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("year-end server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "err", err)
	}
	stop()
	app.Jobs.Wait()
	return nil
}
