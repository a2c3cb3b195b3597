package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tasktracker-backend/internal/http/response"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/services"
)

const DefaultMaxUploadBytes int64 = 10 << 20

type TaskImportHandler struct {
	importService  services.TaskImportService
	maxUploadBytes int64
}

func NewTaskImportHandler(importService services.TaskImportService, maxUploadBytes int64) *TaskImportHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &TaskImportHandler{importService: importService, maxUploadBytes: maxUploadBytes}
}

// POST /upload-tasks/ (multipart/form-data)
// field: "file"
func (h *TaskImportHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Errorf("File exceeds %d bytes", h.maxUploadBytes))
			return
		}
		response.RespondError(c, http.StatusBadRequest, "missing_file", errors.New("No file uploaded"))
		return
	}
	if fh.Size > h.maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Errorf("File exceeds %d bytes", h.maxUploadBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.RespondAPIError(c, apierr.Validation("open_file_failed", err), "open_file_failed")
		return
	}
	defer f.Close()

	res, err := h.importService.ImportFile(c.Request.Context(), fh.Filename, f)
	if err != nil {
		response.RespondAPIError(c, err, "import_failed")
		return
	}

	status := http.StatusOK
	if len(res.Created) > 0 {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"message":      res.Message(),
		"skipped_rows": res.Skipped,
	})
}
