package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsWritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("GET", "/:id/", "200", 30*time.Millisecond)
	m.ObserveAPI("POST", "/upload-tasks/", "500", time.Second)
	m.ObserveImport("ok", 3, 2)
	m.IncMailSend("password_reset", "sent")

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, `tt_api_requests_total{method="GET",route="/:id/",status="200"} 1`)
	assert.Contains(t, out, "tt_api_requests_error_total 1")
	assert.Contains(t, out, `tt_api_request_duration_seconds_bucket{method="GET",route="/:id/",status="200",le="0.05"} 1`)
	assert.Contains(t, out, `tt_task_import_rows_total{result="created"} 3`)
	assert.Contains(t, out, `tt_task_import_rows_total{result="skipped"} 2`)
	assert.Contains(t, out, `tt_mail_sends_total{template="password_reset",status="sent"} 1`)
	assert.Less(t, strings.Index(out, `result="created"`), strings.Index(out, `result="skipped"`))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ObserveImport("ok", 1, 0)
	m.IncMailSend("x", "sent")
	m.ApiInflightInc()
	m.ApiInflightDec()
	assert.NoError(t, m.WritePrometheus(&bytes.Buffer{}))
}
