package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/repos"
	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/ctxutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

const (
	MaxTitleLength = 255

	msgRequired   = "This field is required."
	msgBlank      = "This field may not be blank."
	msgDateFormat = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
)

var errTaskNotFound = apierr.NotFound("task_not_found", errors.New("Task not found"))

// TaskInput is a client payload. Nil fields were omitted by the client.
type TaskInput struct {
	Title       *string
	Description *string
	Completed   *bool
	// ScheduledDateSet separates an explicit null from an omitted field.
	ScheduledDateSet bool
	ScheduledDate    *string
}

type TaskService interface {
	List(dbc dbctx.Context) ([]*types.Task, error)
	Create(ctx context.Context, in TaskInput) (*types.Task, error)
	Get(dbc dbctx.Context, taskID uint) (*types.Task, error)
	// Replace requires every required field; Patch applies only given ones.
	Replace(ctx context.Context, taskID uint, in TaskInput) (*types.Task, error)
	Patch(ctx context.Context, taskID uint, in TaskInput) (*types.Task, error)
	Delete(ctx context.Context, taskID uint) error
}

type taskService struct {
	db       *gorm.DB
	log      *logger.Logger
	taskRepo repos.TaskRepo
}

func NewTaskService(db *gorm.DB, log *logger.Logger, taskRepo repos.TaskRepo) TaskService {
	serviceLog := log.With("service", "TaskService")
	return &taskService{db: db, log: serviceLog, taskRepo: taskRepo}
}

func callerID(ctx context.Context) (uint, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == 0 {
		return 0, errUnauthenticated
	}
	return rd.UserID, nil
}

func (ts *taskService) List(dbc dbctx.Context) ([]*types.Task, error) {
	owner, err := callerID(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := ts.taskRepo.ListByOwner(dbc, owner)
	if err != nil {
		return nil, storageErr("list_tasks_failed", err)
	}
	return tasks, nil
}

func (ts *taskService) Create(ctx context.Context, in TaskInput) (*types.Task, error) {
	owner, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	task := &types.Task{AssignedToID: owner}
	if err := applyTaskInput(task, in, false); err != nil {
		return nil, err
	}
	if _, err := ts.taskRepo.Create(dbctx.Context{Ctx: ctx}, []*types.Task{task}); err != nil {
		return nil, storageErr("create_task_failed", err)
	}
	ts.log.Ctx(ctx).Debug("Task created", "task_id", task.ID)
	return task, nil
}

func (ts *taskService) Get(dbc dbctx.Context, taskID uint) (*types.Task, error) {
	owner, err := callerID(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	task, err := ts.taskRepo.GetByIDForOwner(dbc, taskID, owner)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errTaskNotFound
	}
	if err != nil {
		return nil, storageErr("get_task_failed", err)
	}
	return task, nil
}

func (ts *taskService) Replace(ctx context.Context, taskID uint, in TaskInput) (*types.Task, error) {
	return ts.update(ctx, taskID, in, false)
}

func (ts *taskService) Patch(ctx context.Context, taskID uint, in TaskInput) (*types.Task, error) {
	return ts.update(ctx, taskID, in, true)
}

func (ts *taskService) update(ctx context.Context, taskID uint, in TaskInput, partial bool) (*types.Task, error) {
	var out *types.Task
	err := ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		task, err := ts.Get(dbc, taskID)
		if err != nil {
			return err
		}
		if err := applyTaskInput(task, in, partial); err != nil {
			return err
		}
		if err := ts.taskRepo.Update(dbc, task); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errTaskNotFound
			}
			return storageErr("update_task_failed", err)
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (ts *taskService) Delete(ctx context.Context, taskID uint) error {
	owner, err := callerID(ctx)
	if err != nil {
		return err
	}
	deleted, err := ts.taskRepo.DeleteForOwner(dbctx.Context{Ctx: ctx}, taskID, owner)
	if err != nil {
		return storageErr("delete_task_failed", err)
	}
	if !deleted {
		return errTaskNotFound
	}
	return nil
}

// applyTaskInput validates in and copies it onto task. Ownership and id are
// never taken from input.
func applyTaskInput(task *types.Task, in TaskInput, partial bool) error {
	fields := map[string][]string{}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		switch {
		case title == "":
			fields["title"] = append(fields["title"], msgBlank)
		case utf8.RuneCountInString(title) > MaxTitleLength:
			fields["title"] = append(fields["title"], fmt.Sprintf("Ensure this field has no more than %d characters.", MaxTitleLength))
		default:
			task.Title = title
		}
	} else if !partial {
		fields["title"] = append(fields["title"], msgRequired)
	}

	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if desc == "" {
			fields["description"] = append(fields["description"], msgBlank)
		} else {
			task.Description = desc
		}
	} else if !partial {
		fields["description"] = append(fields["description"], msgRequired)
	}

	if in.Completed != nil {
		task.Completed = *in.Completed
	}

	if in.ScheduledDateSet {
		if in.ScheduledDate == nil || strings.TrimSpace(*in.ScheduledDate) == "" {
			task.ScheduledDate = nil
		} else if d, ok := parseDate(*in.ScheduledDate); ok {
			task.ScheduledDate = &d
		} else {
			fields["scheduled_date"] = append(fields["scheduled_date"], msgDateFormat)
		}
	}

	if len(fields) > 0 {
		return apierr.InvalidFields(fields)
	}
	return nil
}

func parseDate(s string) (datatypes.Date, bool) {
	t, err := time.Parse(types.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return datatypes.Date{}, false
	}
	return types.NewDate(t), true
}
