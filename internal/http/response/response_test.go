package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
)

func render(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondAPIError(c, err, "fallback")
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestRespondAPIErrorKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec, body := render(t, apierr.NotFound("task_not_found", errors.New("Task not found")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", body["error"])

	rec, body = render(t, apierr.InvalidFields(map[string][]string{"title": {"This field is required."}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"title": []any{"This field is required."}}, body["errors"])

	rec, body = render(t, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "fallback", body["code"])
}

func TestRespondAPIErrorMasksStorageInRelease(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)
	defer gin.SetMode(gin.TestMode)

	rec, body := render(t, apierr.Storage("list_tasks_failed", errors.New("pq: relation does not exist")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, genericServerError, body["error"])
}
