package task

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

type TaskRepo interface {
	// Create inserts all tasks in a single statement.
	Create(dbc dbctx.Context, tasks []*types.Task) ([]*types.Task, error)
	ListByOwner(dbc dbctx.Context, ownerID uint) ([]*types.Task, error)
	// GetByIDForOwner returns gorm.ErrRecordNotFound when the task is missing
	// or belongs to someone else.
	GetByIDForOwner(dbc dbctx.Context, taskID, ownerID uint) (*types.Task, error)
	Update(dbc dbctx.Context, task *types.Task) error
	DeleteForOwner(dbc dbctx.Context, taskID, ownerID uint) (bool, error)
	ExistsForOwnerOnDate(dbc dbctx.Context, ownerID uint, title string, date datatypes.Date) (bool, error)
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	repoLog := baseLog.With("repo", "TaskRepo")
	return &taskRepo{db: db, log: repoLog}
}

func (tr *taskRepo) Create(dbc dbctx.Context, tasks []*types.Task) ([]*types.Task, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = tr.db
	}

	if len(tasks) == 0 {
		return []*types.Task{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Omit("AssignedTo").
		Create(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (tr *taskRepo) ListByOwner(dbc dbctx.Context, ownerID uint) ([]*types.Task, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = tr.db
	}

	var results []*types.Task
	if err := transaction.WithContext(dbc.Ctx).
		Where("assigned_to_id = ?", ownerID).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (tr *taskRepo) GetByIDForOwner(dbc dbctx.Context, taskID, ownerID uint) (*types.Task, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = tr.db
	}

	var row types.Task
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND assigned_to_id = ?", taskID, ownerID).
		Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Update writes the mutable columns only; ownership never changes here.
func (tr *taskRepo) Update(dbc dbctx.Context, task *types.Task) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = tr.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Model(task).
		Where("assigned_to_id = ?", task.AssignedToID).
		Select("title", "description", "completed", "scheduled_date", "updated_at").
		Updates(task)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (tr *taskRepo) DeleteForOwner(dbc dbctx.Context, taskID, ownerID uint) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = tr.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND assigned_to_id = ?", taskID, ownerID).
		Delete(&types.Task{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (tr *taskRepo) ExistsForOwnerOnDate(dbc dbctx.Context, ownerID uint, title string, date datatypes.Date) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = tr.db
	}

	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Task{}).
		Where("assigned_to_id = ? AND title = ? AND scheduled_date = ?", ownerID, title, date).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
