package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/repos/auth"
	"github.com/yungbote/tasktracker-backend/internal/data/repos/task"
	"github.com/yungbote/tasktracker-backend/internal/data/repos/user"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type UserTokenRepo = auth.UserTokenRepo
type PasswordResetTokenRepo = auth.PasswordResetTokenRepo
type TaskRepo = task.TaskRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return user.NewUserRepo(db, baseLog)
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
	return auth.NewUserTokenRepo(db, baseLog)
}

func NewPasswordResetTokenRepo(db *gorm.DB, baseLog *logger.Logger) PasswordResetTokenRepo {
	return auth.NewPasswordResetTokenRepo(db, baseLog)
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return task.NewTaskRepo(db, baseLog)
}
