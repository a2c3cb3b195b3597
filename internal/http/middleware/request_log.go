package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/tasktracker-backend/internal/platform/ctxutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// RequestContext stamps every request with a request id and a trace id,
// echoes both on the response and writes one access log line once the chain
// returns. Services see the ids through logger.Ctx.
func RequestContext(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		td := traceDataFor(c)
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Writer.Header().Set(headerTraceID, td.TraceID)
		c.Writer.Header().Set(headerRequestID, td.RequestID)

		c.Next()

		if log != nil {
			logRequest(log, c, time.Since(start))
		}
	}
}

// traceDataFor prefers caller-supplied ids, then the active span.
func traceDataFor(c *gin.Context) *ctxutil.TraceData {
	reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
	if reqID == "" {
		reqID = uuid.NewString()
	}
	traceID := strings.TrimSpace(c.GetHeader(headerTraceID))
	if traceID == "" {
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
	}
	if traceID == "" {
		traceID = reqID
	}
	return &ctxutil.TraceData{TraceID: traceID, RequestID: reqID}
}

func logRequest(log *logger.Logger, c *gin.Context, elapsed time.Duration) {
	status := c.Writer.Status()
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	fields := []interface{}{
		"method", c.Request.Method,
		"path", path,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
		"bytes_out", c.Writer.Size(),
	}
	if len(c.Errors) > 0 {
		fields = append(fields, "error", c.Errors.Last().Error())
	}

	// c.Request carries the caller once RequireAuth has run.
	reqLog := log.Ctx(c.Request.Context())
	switch {
	case status >= 500:
		reqLog.Error("HTTP request", fields...)
	case status >= 400:
		reqLog.Warn("HTTP request", fields...)
	default:
		reqLog.Info("HTTP request", fields...)
	}
}
