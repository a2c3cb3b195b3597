package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
)

const genericServerError = "A server error occurred."

type ErrorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type ValidationEnvelope struct {
	Errors map[string][]string `json:"errors"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: msg, Code: code})
}

func RespondValidation(c *gin.Context, fields map[string][]string) {
	c.JSON(http.StatusBadRequest, ValidationEnvelope{Errors: fields})
}

// RespondAPIError renders err by its apierr kind. Storage and unexpected
// messages are masked outside debug/test mode.
func RespondAPIError(c *gin.Context, err error, fallbackCode string) {
	ae := apierr.As(err, fallbackCode)
	if ae == nil {
		RespondError(c, http.StatusInternalServerError, fallbackCode, errors.New(genericServerError))
		return
	}
	if len(ae.Fields) > 0 {
		RespondValidation(c, ae.Fields)
		return
	}
	status := ae.Status
	if status == 0 {
		status = ae.Kind.Status()
	}
	if ae.Internal() {
		_ = c.Error(ae)
		if gin.Mode() == gin.ReleaseMode {
			RespondError(c, status, ae.Code, errors.New(genericServerError))
			return
		}
	}
	RespondError(c, status, ae.Code, ae)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
