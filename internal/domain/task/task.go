package task

import (
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/tasktracker-backend/internal/domain/user"
)

// DateLayout is the only accepted textual form of a scheduled date.
const DateLayout = "2006-01-02"

type Task struct {
	ID            uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string          `gorm:"size:255;not null;column:title" json:"title"`
	Description   string          `gorm:"type:text;not null;column:description" json:"description"`
	Completed     bool            `gorm:"not null;default:false;column:completed" json:"completed"`
	AssignedToID  uint            `gorm:"index;not null;column:assigned_to_id" json:"assigned_to"`
	AssignedTo    *user.User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssignedToID;references:ID" json:"-"`
	ScheduledDate *datatypes.Date `gorm:"index;column:scheduled_date" json:"-"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (Task) TableName() string { return "task" }

// ScheduledOn formats the scheduled date, or returns "" when unset.
func (t *Task) ScheduledOn() string {
	if t == nil || t.ScheduledDate == nil {
		return ""
	}
	return time.Time(*t.ScheduledDate).Format(DateLayout)
}

// NewDate truncates t to its calendar date.
func NewDate(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}
