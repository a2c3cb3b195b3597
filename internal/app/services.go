package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
	"github.com/yungbote/tasktracker-backend/internal/platform/sendgrid"
	"github.com/yungbote/tasktracker-backend/internal/platform/spreadsheet"
	"github.com/yungbote/tasktracker-backend/internal/services"
)

type Services struct {
	Auth          services.AuthService
	User          services.UserService
	Task          services.TaskService
	TaskImport    services.TaskImportService
	PasswordReset services.PasswordResetService
}

// wireMail falls back to a logging client when no SendGrid key is set.
func wireMail(log *logger.Logger) (sendgrid.Client, error) {
	cfg := sendgrid.ConfigFromEnv()
	if cfg.APIKey == "" {
		log.Warn("SENDGRID_API_KEY not set; reset emails will only be logged")
		return sendgrid.NewLogClient(log), nil
	}
	client, err := sendgrid.New(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("init sendgrid client: %w", err)
	}
	return client, nil
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, mail sendgrid.Client) Services {
	log.Info("Wiring services...")
	return Services{
		Auth:       services.NewAuthService(db, log, r.User, r.UserToken, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		User:       services.NewUserService(db, log, r.User),
		Task:       services.NewTaskService(db, log, r.Task),
		TaskImport: services.NewTaskImportService(db, log, r.User, r.Task, spreadsheet.OptionsForUpload(cfg.MaxUploadBytes)),
		PasswordReset: services.NewPasswordResetService(db, log, r.User, r.UserToken, r.PasswordResetToken, mail, services.PasswordResetConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			TokenTTL:      cfg.PasswordResetTTL,
		}),
	}
}
