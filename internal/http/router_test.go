package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tasktracker-backend/internal/data/repos"
	"github.com/yungbote/tasktracker-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/tasktracker-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tasktracker-backend/internal/http/middleware"
	"github.com/yungbote/tasktracker-backend/internal/platform/sendgrid"
	"github.com/yungbote/tasktracker-backend/internal/platform/spreadsheet"
	"github.com/yungbote/tasktracker-backend/internal/services"
)

type outbox struct {
	mu   sync.Mutex
	sent []sendgrid.SendEmailRequest
}

func (o *outbox) Send(ctx context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: nethttp.StatusAccepted}, nil
}

func (o *outbox) last(t *testing.T) sendgrid.SendEmailRequest {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	return o.sent[len(o.sent)-1]
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

func newTestRouter(t *testing.T) (*gin.Engine, *outbox) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.DB(t)
	log := testutil.Logger(t)
	mail := &outbox{}

	userRepo := repos.NewUserRepo(db, log)
	userTokenRepo := repos.NewUserTokenRepo(db, log)
	resetRepo := repos.NewPasswordResetTokenRepo(db, log)
	taskRepo := repos.NewTaskRepo(db, log)

	authService := services.NewAuthService(db, log, userRepo, userTokenRepo, "test-secret", time.Hour, 24*time.Hour)
	userService := services.NewUserService(db, log, userRepo)
	taskService := services.NewTaskService(db, log, taskRepo)
	importService := services.NewTaskImportService(db, log, userRepo, taskRepo, spreadsheet.OptionsForUpload(httpH.DefaultMaxUploadBytes))
	resetService := services.NewPasswordResetService(db, log, userRepo, userTokenRepo, resetRepo, mail, services.PasswordResetConfig{
		PublicBaseURL: "https://tasks.example.com",
	})

	r := NewRouter(RouterConfig{
		Log:               log,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, authService),
		AuthHandler:       httpH.NewAuthHandler(authService),
		UserHandler:       httpH.NewUserHandler(userService),
		TaskHandler:       httpH.NewTaskHandler(taskService),
		TaskImportHandler: httpH.NewTaskImportHandler(importService, 0),
		PasswordHandler:   httpH.NewPasswordHandler(resetService),
		HealthHandler:     httpH.NewHealthHandler(db),
	})
	return r, mail
}

func do(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type account struct {
	id      uint
	access  string
	refresh string
}

func signup(t *testing.T, r *gin.Engine, email, password string) account {
	t.Helper()
	rec := do(t, r, nethttp.MethodPost, "/register/", "", map[string]string{
		"email": email, "password": password, "first_name": "Ada", "last_name": "Lovelace",
	})
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	id := uint(decode(t, rec)["id"].(float64))

	rec = do(t, r, nethttp.MethodPost, "/login/", "", map[string]string{"email": email, "password": password})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	return account{id: id, access: body["access_token"].(string), refresh: body["refresh_token"].(string)}
}

func TestHealthcheck(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(t, r, nethttp.MethodGet, "/healthcheck", "", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTaskEndpointsRequireAuth(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, tc := range []struct{ method, path string }{
		{nethttp.MethodGet, "/"},
		{nethttp.MethodPost, "/"},
		{nethttp.MethodGet, "/1/"},
		{nethttp.MethodPost, "/upload-tasks/"},
		{nethttp.MethodGet, "/me/"},
	} {
		rec := do(t, r, tc.method, tc.path, "", nil)
		assert.Equal(t, nethttp.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestTaskCRUDIsScopedToOwner(t *testing.T) {
	r, _ := newTestRouter(t)
	alice := signup(t, r, "alice@example.com", "secret1")
	bob := signup(t, r, "bob@example.com", "secret2")

	rec := do(t, r, nethttp.MethodPost, "/", alice.access, map[string]any{
		"title":          "Write report",
		"description":    "Quarterly numbers",
		"assigned_to":    bob.id,
		"scheduled_date": "2024-03-01",
	})
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, float64(alice.id), created["assigned_to"])
	assert.Equal(t, false, created["completed"])
	assert.Equal(t, "2024-03-01", created["scheduled_date"])
	path := fmt.Sprintf("/%d/", uint(created["id"].(float64)))

	rec = do(t, r, nethttp.MethodGet, "/", alice.access, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = do(t, r, nethttp.MethodGet, "/", bob.access, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, method := range []string{nethttp.MethodGet, nethttp.MethodPatch, nethttp.MethodDelete} {
		rec = do(t, r, method, path, bob.access, map[string]any{"completed": true})
		assert.Equal(t, nethttp.StatusNotFound, rec.Code, method)
		assert.JSONEq(t, `{"error":"Task not found","code":"task_not_found"}`, rec.Body.String())
	}

	rec = do(t, r, nethttp.MethodPatch, path, alice.access, map[string]any{"completed": true, "scheduled_date": nil})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	patched := decode(t, rec)
	assert.Equal(t, true, patched["completed"])
	assert.NotContains(t, patched, "scheduled_date")
	assert.Equal(t, "Write report", patched["title"])

	rec = do(t, r, nethttp.MethodPut, path, alice.access, map[string]any{"title": "Only title"})
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":{"description":["This field is required."]}}`, rec.Body.String())

	rec = do(t, r, nethttp.MethodDelete, path, alice.access, nil)
	assert.Equal(t, nethttp.StatusNoContent, rec.Code)
	rec = do(t, r, nethttp.MethodGet, path, alice.access, nil)
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
}

func TestTaskValidationErrors(t *testing.T) {
	r, _ := newTestRouter(t)
	alice := signup(t, r, "alice@example.com", "secret1")

	rec := do(t, r, nethttp.MethodPost, "/", alice.access, map[string]any{
		"title":          "",
		"scheduled_date": "03/01/2024",
	})
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)
	errs := decode(t, rec)["errors"].(map[string]any)
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "description")
	assert.Contains(t, errs, "scheduled_date")

	rec = do(t, r, nethttp.MethodGet, "/not-a-number/", alice.access, nil)
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	r, _ := newTestRouter(t)
	alice := signup(t, r, "alice@example.com", "secret1")

	rec := do(t, r, nethttp.MethodPost, "/refresh/", "", map[string]string{"refresh_token": alice.refresh})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	rotated := decode(t, rec)
	access := rotated["access_token"].(string)
	assert.NotEqual(t, alice.access, access)

	rec = do(t, r, nethttp.MethodPost, "/refresh/", "", map[string]string{"refresh_token": alice.refresh})
	assert.Equal(t, nethttp.StatusUnauthorized, rec.Code)

	rec = do(t, r, nethttp.MethodPost, "/logout/", access, nil)
	assert.Equal(t, nethttp.StatusNoContent, rec.Code)
	rec = do(t, r, nethttp.MethodGet, "/", access, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, rec.Code)
}

func TestMeEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	alice := signup(t, r, "Alice@Example.com", "secret1")

	rec := do(t, r, nethttp.MethodGet, "/me/", alice.access, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	me := decode(t, rec)
	assert.Equal(t, "alice@example.com", me["email"])
	assert.NotContains(t, me, "password")

	rec = do(t, r, nethttp.MethodPatch, "/me/", alice.access, map[string]string{"first_name": "Grace", "last_name": "Hopper"})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Grace", decode(t, rec)["first_name"])
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	r, mail := newTestRouter(t)
	signup(t, r, "alice@example.com", "secret1")

	known := do(t, r, nethttp.MethodPost, "/forgot-password/", "", map[string]string{"email": "alice@example.com"})
	unknown := do(t, r, nethttp.MethodPost, "/forgot-password/", "", map[string]string{"email": "nobody@example.com"})

	assert.Equal(t, nethttp.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.JSONEq(t, `{"message":"If the email exists, a reset link has been sent."}`, known.Body.String())
	assert.Equal(t, 1, mail.count())

	rec := do(t, r, nethttp.MethodPost, "/forgot-password/", "", map[string]string{"email": "not-an-email"})
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":{"email":["Enter a valid email address."]}}`, rec.Body.String())
}

// resetLink pulls uid and token out of the emailed link.
func resetLink(t *testing.T, text string) (string, string) {
	t.Helper()
	idx := strings.Index(text, "/reset-password/")
	require.GreaterOrEqual(t, idx, 0, text)
	parts := strings.Split(strings.TrimSpace(text[idx+len("/reset-password/"):]), "/")
	require.GreaterOrEqual(t, len(parts), 2)
	return parts[0], parts[1]
}

func TestResetPasswordFlow(t *testing.T) {
	r, mail := newTestRouter(t)
	alice := signup(t, r, "alice@example.com", "secret1")
	bob := signup(t, r, "bob@example.com", "secret2")

	rec := do(t, r, nethttp.MethodPost, "/reset-password/", "", map[string]string{
		"uid": "garbage", "token": "garbage", "new_password": "newpass1", "confirm_password": "newpass2",
	})
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":{"non_field_errors":["Passwords do not match"]}}`, rec.Body.String())

	do(t, r, nethttp.MethodPost, "/forgot-password/", "", map[string]string{"email": "alice@example.com"})
	uid, token := resetLink(t, mail.last(t).Text)
	assert.Equal(t, services.EncodeUID(alice.id), uid)

	rec = do(t, r, nethttp.MethodPost, "/reset-password/", "", map[string]string{
		"uid": services.EncodeUID(bob.id), "token": token, "new_password": "hijack1", "confirm_password": "hijack1",
	})
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired token", decode(t, rec)["error"])

	rec = do(t, r, nethttp.MethodPost, "/reset-password/", "", map[string]string{
		"uid": uid, "token": token, "new_password": "newpass1", "confirm_password": "newpass1",
	})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Password reset successful"}`, rec.Body.String())

	rec = do(t, r, nethttp.MethodGet, "/", alice.access, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, rec.Code)

	rec = do(t, r, nethttp.MethodPost, "/login/", "", map[string]string{"email": "alice@example.com", "password": "newpass1"})
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	rec = do(t, r, nethttp.MethodPost, "/reset-password/", "", map[string]string{
		"uid": uid, "token": token, "new_password": "again12", "confirm_password": "again12",
	})
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func upload(t *testing.T, r *gin.Engine, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(nethttp.MethodPost, "/upload-tasks/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUploadTasks(t *testing.T) {
	r, _ := newTestRouter(t)
	alice := signup(t, r, "alice@example.com", "secret1")

	csv := "title,description,completed,assigned_to,date\n" +
		fmt.Sprintf("Write report,Quarterly numbers,true,%d,2024-03-01\n", alice.id) +
		fmt.Sprintf(",No title,false,%d,2024-03-01\n", alice.id) +
		"Ghost,Nobody home,false,9999,2024-03-01\n" +
		fmt.Sprintf("Bad date,desc,false,%d,03/01/2024\n", alice.id)

	rec := upload(t, r, alice.access, "tasks.csv", csv)
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"message": "1 tasks uploaded successfully.",
		"skipped_rows": [
			{"row": 3, "reason": "Missing title"},
			{"row": 4, "reason": "Invalid user ID: 9999"},
			{"row": 5, "reason": "Invalid date format: 03/01/2024"}
		]
	}`, rec.Body.String())

	rec = upload(t, r, alice.access, "tasks.csv", csv)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "No new tasks were uploaded.", body["message"])
	skipped := body["skipped_rows"].([]any)
	require.Len(t, skipped, 4)
	assert.Equal(t, `Duplicate task "Write report" for 2024-03-01 already exists`, skipped[0].(map[string]any)["reason"])

	rec = do(t, r, nethttp.MethodGet, "/", alice.access, nil)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0]["completed"])
}

func TestUploadTasksRejectsBadRequests(t *testing.T) {
	r, _ := newTestRouter(t)
	alice := signup(t, r, "alice@example.com", "secret1")

	rec := upload(t, r, alice.access, "", "")
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", decode(t, rec)["error"])

	rec = upload(t, r, alice.access, "tasks.xlsx", "not a workbook")
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])
}
