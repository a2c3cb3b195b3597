package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/repos"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

type Repos struct {
	User               repos.UserRepo
	UserToken          repos.UserTokenRepo
	PasswordResetToken repos.PasswordResetTokenRepo
	Task               repos.TaskRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:               repos.NewUserRepo(db, log),
		UserToken:          repos.NewUserTokenRepo(db, log),
		PasswordResetToken: repos.NewPasswordResetTokenRepo(db, log),
		Task:               repos.NewTaskRepo(db, log),
	}
}
