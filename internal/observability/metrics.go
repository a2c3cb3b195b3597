package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/platform/envutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *Gauge
	apiReqError  *Counter
	importRuns   *CounterVec
	importRows   *CounterVec
	mailSends    *CounterVec
	dbPool       *GaugeVec
	scrapePeriod time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		instance.scrapePeriod = envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 15*time.Second)
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("tt_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"tt_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight:  NewGauge("tt_api_inflight_requests", "In-flight API requests."),
		apiReqError:  NewCounter("tt_api_requests_error_total", "Total API requests with 5xx status."),
		importRuns:   NewCounterVec("tt_task_import_runs_total", "Bulk task imports by outcome.", []string{"outcome"}),
		importRows:   NewCounterVec("tt_task_import_rows_total", "Imported sheet rows by result.", []string{"result"}),
		mailSends:    NewCounterVec("tt_mail_sends_total", "Outgoing mail by template/status.", []string{"template", "status"}),
		dbPool:       NewGaugeVec("tt_db_pool", "database/sql pool stats.", []string{"stat"}),
		scrapePeriod: 15 * time.Second,
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.apiReqError,
		m.importRuns,
		m.importRows,
		m.mailSends,
		m.dbPool,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveImport records one finished import. outcome is "ok" or "failed".
func (m *Metrics) ObserveImport(outcome string, created, skipped int) {
	if m == nil {
		return
	}
	m.importRuns.Inc(outcome)
	if created > 0 {
		m.importRows.Add(float64(created), "created")
	}
	if skipped > 0 {
		m.importRows.Add(float64(skipped), "skipped")
	}
}

func (m *Metrics) IncMailSend(template, status string) {
	if m == nil {
		return
	}
	m.mailSends.Inc(strings.TrimSpace(template), status)
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectDBStats(log, db)
			}
		}
	}()
}

func (m *Metrics) collectDBStats(log *logger.Logger, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db stats unavailable", "error", err)
		}
		return
	}
	stats := sqlDB.Stats()
	m.dbPool.Set(float64(stats.OpenConnections), "open_connections")
	m.dbPool.Set(float64(stats.InUse), "in_use")
	m.dbPool.Set(float64(stats.Idle), "idle")
	m.dbPool.Set(float64(stats.WaitCount), "wait_count")
	m.dbPool.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	m.dbPool.Set(float64(stats.MaxOpenConnections), "max_open_connections")
}

// StartServer serves /metrics on a separate listener when METRICS_ADDR is set.
// It returns nil when metrics are disabled or no address is configured.
func (m *Metrics) StartServer(log *logger.Logger, addr string) *http.Server {
	if m == nil || strings.TrimSpace(addr) == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.WriteHTTP)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && log != nil {
			log.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	if log != nil {
		log.Info("metrics server listening", "addr", addr)
	}
	return srv
}
