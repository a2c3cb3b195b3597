package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/http"
	httpH "github.com/yungbote/tasktracker-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tasktracker-backend/internal/http/middleware"
	"github.com/yungbote/tasktracker-backend/internal/observability"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Auth       *httpH.AuthHandler
	User       *httpH.UserHandler
	Task       *httpH.TaskHandler
	TaskImport *httpH.TaskImportHandler
	Password   *httpH.PasswordHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Auth:       httpH.NewAuthHandler(services.Auth),
		User:       httpH.NewUserHandler(services.User),
		Task:       httpH.NewTaskHandler(services.Task),
		TaskImport: httpH.NewTaskImportHandler(services.TaskImport, cfg.MaxUploadBytes),
		Password:   httpH.NewPasswordHandler(services.PasswordReset),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, tracing bool, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(cfg.Addr(), http.RouterConfig{
		Log:               log,
		ServiceName:       cfg.Otel.ServiceName,
		AllowOrigins:      cfg.CORSAllowOrigins,
		Metrics:           metrics,
		ExposeMetrics:     cfg.MetricsAddr == "",
		TracingEnabled:    tracing,
		AuthMiddleware:    middleware.Auth,
		AuthHandler:       handlers.Auth,
		UserHandler:       handlers.User,
		TaskHandler:       handlers.Task,
		TaskImportHandler: handlers.TaskImport,
		PasswordHandler:   handlers.Password,
		HealthHandler:     handlers.Health,
	})
}
