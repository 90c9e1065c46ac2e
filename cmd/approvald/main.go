package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	approvals "github.com/goliatone/go-approvals"
	"github.com/goliatone/go-approvals/auth"
	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/metrics"
	approvalmigrations "github.com/goliatone/go-approvals/migrations"
	sqlstore "github.com/goliatone/go-approvals/store/sql"
	"github.com/goliatone/go-approvals/transport/httpd"
)

// Build-time variables set via ldflags.
var (
	version = "0.1.0"
	commit  = ""
)

func versionString() string {
	if commit != "" {
		return fmt.Sprintf("%s (%s)", version, commit)
	}
	return version + "-dev"
}

func main() {
	_ = godotenv.Load()

	provider, logger := glog.Resolve("approvald", nil, nil)
	logger = glog.Ensure(logger)

	if err := run(provider, logger); err != nil {
		logger.Error("approvald exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(provider glog.LoggerProvider, logger glog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}

	configProvider, err := newConfigProvider(cfg.ConfigPath)
	if err != nil {
		return err
	}

	client, err := openPersistence(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("persistence close failed", "error", closeErr.Error())
		}
	}()

	verifier, err := auth.NewAPIKeyVerifier(auth.APIKeyConfig{
		Header: cfg.APIKeyHeader,
		Keys:   cfg.APIKeys,
	})
	if err != nil {
		return err
	}

	service, err := approvals.Setup(approvals.Config{},
		approvals.WithLoggerProvider(provider),
		approvals.WithLogger(logger),
		approvals.WithConfigProvider(configProvider),
		approvals.WithPersistenceClient(client),
		approvals.WithRepositoryFactory(sqlstore.NewRepositoryFactory()),
		approvals.WithMetricsRecorder(metrics.NewRecorder(metrics.RecorderConfig{Logger: logger})),
		approvals.WithCredentialSource(core.EnvCredentialSource{}),
	)
	if err != nil {
		return err
	}

	tenants := service.Config().Tenants
	if len(tenants) == 0 {
		logger.Warn("no tenants configured, every decision will be rejected", "config", cfg.ConfigPath)
	}

	router, err := httpd.NewRouter(ctx, &httpd.RouterDeps{
		Service:      service,
		Verifier:     verifier,
		Logger:       logger,
		Version:      versionString(),
		MaxBodyBytes: cfg.MaxBodyBytes,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	logger.Info("approvald listening",
		"addr", cfg.HTTPAddr,
		"version", versionString(),
		"driver", cfg.DBDriver,
		"tenants", len(tenants),
		"api_keys", len(cfg.APIKeys),
	)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type persistenceSettings struct {
	driver string
	dsn    string
}

func (s persistenceSettings) GetDebug() bool                { return false }
func (s persistenceSettings) GetDriver() string             { return s.driver }
func (s persistenceSettings) GetServer() string             { return s.dsn }
func (s persistenceSettings) GetPingTimeout() time.Duration { return 5 * time.Second }
func (s persistenceSettings) GetOtelIdentifier() string     { return "go-approvals" }

// openPersistence connects the audit database, registers the schema for the
// active dialect, and applies pending migrations unless disabled.
func openPersistence(ctx context.Context, cfg serverConfig, logger glog.Logger) (*persistence.Client, error) {
	var sqlDialect schema.Dialect
	var migrationTarget string
	switch cfg.DBDriver {
	case driverPostgres:
		sqlDialect = pgdialect.New()
		migrationTarget = approvalmigrations.DialectPostgres
	case driverSQLite:
		sqlDialect = sqlitedialect.New()
		migrationTarget = approvalmigrations.DialectSQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	sqlDB, err := sql.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	client, err := persistence.New(persistenceSettings{driver: cfg.DBDriver, dsn: cfg.DBDSN}, sqlDB, sqlDialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	_, err = approvalmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrationTarget {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, approvalmigrations.WithValidationTargets(migrationTarget))
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	if cfg.Migrate {
		if err := client.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("audit schema migrated", "dialect", migrationTarget)
	}

	return client, nil
}
