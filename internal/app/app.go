package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/db"
	"github.com/yungbote/tasktracker-backend/internal/http"
	"github.com/yungbote/tasktracker-backend/internal/observability"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

const resetPurgeInterval = time.Hour

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Server   *http.Server

	dbService     *db.PostgresService
	metrics       *observability.Metrics
	metricsServer *nethttp.Server
	otelShutdown  func(context.Context) error
	cancel        context.CancelFunc
}

func New() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	gin.SetMode(cfg.GinMode)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
		Version:     cfg.Otel.Version,
	})
	metrics := observability.Init(log)

	dbService, err := db.NewPostgresService(log, cfg.Database)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	theDB := dbService.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	if err := db.EnsureTaskIndexes(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("task indexes: %w", err)
	}

	mail, err := wireMail(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, mail)
	handlerset := wireHandlers(log, theDB, cfg, serviceset)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, cfg, metrics, otelShutdown != nil, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Server:       server,
		dbService:    dbService,
		metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background work: DB pool metrics, the optional metrics
// listener and the expired reset-token purge.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.metrics.StartDBCollector(ctx, a.Log, a.DB)
	a.metricsServer = a.metrics.StartServer(a.Log, a.Cfg.MetricsAddr)
	go a.purgeResetTokens(ctx)
}

func (a *App) purgeResetTokens(ctx context.Context) {
	ticker := time.NewTicker(resetPurgeInterval)
	defer ticker.Stop()
	for {
		if _, err := a.Services.PasswordReset.PurgeExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Log.Warn("Reset token purge failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "addr", a.Cfg.Addr())
	return a.Server.Run()
}

// Shutdown stops accepting requests, then releases background work,
// tracing and the database.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Server != nil {
		errs = append(errs, a.Server.Shutdown(ctx))
	}
	if a.metricsServer != nil {
		errs = append(errs, a.metricsServer.Shutdown(ctx))
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		errs = append(errs, a.otelShutdown(ctx))
	}
	if a.dbService != nil {
		errs = append(errs, a.dbService.Close())
	}
	a.Log.Sync()
	return errors.Join(errs...)
}
