package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/promoshop/promoshop/internal/cache"
	"github.com/promoshop/promoshop/internal/catalog"
	"github.com/promoshop/promoshop/internal/config"
	"github.com/promoshop/promoshop/internal/db"
	"github.com/promoshop/promoshop/internal/handlers"
	"github.com/promoshop/promoshop/internal/orders"
	"github.com/promoshop/promoshop/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
	sentryEnabled bool
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	sentryEnabled, err := initSentry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	exportLoc, err := cfg.ExportLocation()
	if err != nil {
		return nil, err
	}

	campaigns, err := catalog.Load(cfg.CampaignsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaigns: %w", err)
	}
	logger.Info("campaign catalog loaded", "file", cfg.CampaignsFile, "campaigns", len(campaigns.Campaigns(context.Background())))

	machine, err := orders.NewMachine(orders.Policy(cfg.StatusPolicy), logger.With("component", "status_machine"))
	if err != nil {
		return nil, err
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(startupCtx, database); err != nil {
		database.Close()
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
		KeyPrefix:             cfg.CacheKeyPrefix,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	orderStore := db.NewOrderStore(database)
	orderService := services.NewOrderService(
		orderStore,
		campaigns,
		cacheProvider,
		cfg.IdempotencyTTL,
		logger.With("component", "order_service"),
	)
	adminService := services.NewAdminService(
		orderStore,
		machine,
		cfg.OrderListLimit,
		exportLoc,
		logger.With("component", "admin_service"),
	)

	h, err := handlers.New(handlers.Dependencies{
		Config:       cfg,
		DB:           database,
		Cache:        cacheProvider,
		Campaigns:    campaigns,
		OrderService: orderService,
		AdminService: adminService,
		Logger:       logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
		sentryEnabled: sentryEnabled,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.Kitchen,
	}))
}

// initSentry is a no-op without a DSN; spans and meters are then discarded.
func initSentry(cfg *config.Config) (bool, error) {
	if strings.TrimSpace(cfg.SentryDSN) == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		TracesSampleRate: cfg.SentrySampleRate,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
