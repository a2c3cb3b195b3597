package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/tasktracker-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tasktracker-backend/internal/http/middleware"
	"github.com/yungbote/tasktracker-backend/internal/observability"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowOrigins   []string
	Metrics        *observability.Metrics
	ExposeMetrics  bool
	TracingEnabled bool

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler       *httpH.AuthHandler
	UserHandler       *httpH.UserHandler
	TaskHandler       *httpH.TaskHandler
	TaskImportHandler *httpH.TaskImportHandler
	PasswordHandler   *httpH.PasswordHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	httpH.RegisterValidation()

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.RequestContext(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil && cfg.ExposeMetrics {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Public
	if cfg.AuthHandler != nil {
		r.POST("/register/", cfg.AuthHandler.Register)
		r.POST("/login/", cfg.AuthHandler.Login)
		r.POST("/refresh/", cfg.AuthHandler.Refresh)
	}
	if cfg.PasswordHandler != nil {
		r.POST("/forgot-password/", cfg.PasswordHandler.ForgotPassword)
		r.POST("/reset-password/", cfg.PasswordHandler.ResetPassword)
	}

	protected := r.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.POST("/logout/", cfg.AuthHandler.Logout)
		}

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me/", cfg.UserHandler.GetMe)
			protected.PATCH("/me/", cfg.UserHandler.ChangeName)
		}

		// Import
		if cfg.TaskImportHandler != nil {
			protected.POST("/upload-tasks/", cfg.TaskImportHandler.Upload)
		}

		// Tasks
		if cfg.TaskHandler != nil {
			protected.GET("/", cfg.TaskHandler.List)
			protected.POST("/", cfg.TaskHandler.Create)
			protected.GET("/:id/", cfg.TaskHandler.Get)
			protected.PUT("/:id/", cfg.TaskHandler.Replace)
			protected.PATCH("/:id/", cfg.TaskHandler.Patch)
			protected.DELETE("/:id/", cfg.TaskHandler.Delete)
		}
	}

	return r
}
