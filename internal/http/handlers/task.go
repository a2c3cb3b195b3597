package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/http/response"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
	"github.com/yungbote/tasktracker-backend/internal/services"
)

var errTaskNotFound = apierr.NotFound("task_not_found", errors.New("Task not found"))

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

type taskResponse struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Completed     bool   `json:"completed"`
	AssignedTo    uint   `json:"assigned_to"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
}

func taskBody(t *types.Task) taskResponse {
	return taskResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Completed:     t.Completed,
		AssignedTo:    t.AssignedToID,
		ScheduledDate: t.ScheduledOn(),
	}
}

// nullableString tells an explicit null apart from an absent key.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// id and assigned_to are accepted but ignored.
type taskRequest struct {
	Title         *string        `json:"title"`
	Description   *string        `json:"description"`
	Completed     *bool          `json:"completed"`
	ScheduledDate nullableString `json:"scheduled_date"`
}

func (r taskRequest) input() services.TaskInput {
	return services.TaskInput{
		Title:            r.Title,
		Description:      r.Description,
		Completed:        r.Completed,
		ScheduledDateSet: r.ScheduledDate.Set,
		ScheduledDate:    r.ScheduledDate.Value,
	}
}

func taskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		response.RespondAPIError(c, errTaskNotFound, "task_not_found")
		return 0, false
	}
	return uint(id), true
}

// GET /
func (th *TaskHandler) List(c *gin.Context) {
	tasks, err := th.taskService.List(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondAPIError(c, err, "list_tasks_failed")
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskBody(t))
	}
	response.RespondOK(c, out)
}

// POST /
func (th *TaskHandler) Create(c *gin.Context) {
	var req taskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := th.taskService.Create(c.Request.Context(), req.input())
	if err != nil {
		response.RespondAPIError(c, err, "create_task_failed")
		return
	}
	response.RespondCreated(c, taskBody(task))
}

// GET /:id/
func (th *TaskHandler) Get(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := th.taskService.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondAPIError(c, err, "get_task_failed")
		return
	}
	response.RespondOK(c, taskBody(task))
}

// PUT /:id/
func (th *TaskHandler) Replace(c *gin.Context) {
	th.update(c, false)
}

// PATCH /:id/
func (th *TaskHandler) Patch(c *gin.Context) {
	th.update(c, true)
}

func (th *TaskHandler) update(c *gin.Context, partial bool) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req taskRequest
	if !(partial && c.Request.ContentLength == 0) && !bindJSON(c, &req) {
		return
	}
	var (
		task *types.Task
		err  error
	)
	if partial {
		task, err = th.taskService.Patch(c.Request.Context(), id, req.input())
	} else {
		task, err = th.taskService.Replace(c.Request.Context(), id, req.input())
	}
	if err != nil {
		response.RespondAPIError(c, err, "update_task_failed")
		return
	}
	response.RespondOK(c, taskBody(task))
}

// DELETE /:id/
func (th *TaskHandler) Delete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := th.taskService.Delete(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, err, "delete_task_failed")
		return
	}
	response.RespondNoContent(c)
}
