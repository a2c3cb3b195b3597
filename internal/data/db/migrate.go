package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/tasktracker-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Identity + auth
		&types.User{},
		&types.UserToken{},
		&types.PasswordResetToken{},

		// Tasks
		&types.Task{},
	)
}

// EnsureTaskIndexes adds the composite index the import duplicate check
// filters on.
func EnsureTaskIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_task_owner_title_date
		ON task (assigned_to_id, title, scheduled_date);
	`).Error; err != nil {
		return fmt.Errorf("create idx_task_owner_title_date: %w", err)
	}
	return nil
}
