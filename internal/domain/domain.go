package domain

import (
	"github.com/yungbote/tasktracker-backend/internal/domain/auth"
	"github.com/yungbote/tasktracker-backend/internal/domain/task"
	"github.com/yungbote/tasktracker-backend/internal/domain/user"
)

type (
	User               = user.User
	UserToken          = auth.UserToken
	PasswordResetToken = auth.PasswordResetToken
	Task               = task.Task
)

const DateLayout = task.DateLayout

var NewDate = task.NewDate
