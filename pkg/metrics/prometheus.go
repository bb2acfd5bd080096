package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionMetrics holds the gauges and counters describing the admission
// queue and the session engine's steady-state behavior.
type SessionMetrics struct {
	BuildInfo *prometheus.GaugeVec
	StartTime prometheus.Gauge

	SessionsActive   prometheus.Gauge
	QueueDepth       prometheus.Gauge
	Admissions       prometheus.Counter
	Rejections       *prometheus.CounterVec
	SessionsComplete *prometheus.CounterVec
	ReportCycles     prometheus.Counter
	BoardFramesSent  prometheus.Counter
}

// NewSessionMetrics creates and registers the session-server metrics.
func NewSessionMetrics(namespace string) *SessionMetrics {
	return &SessionMetrics{
		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		}, []string{"version", "commit", "build_time"}),
		StartTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Unix timestamp of server start time",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of slots currently Reserved or Live",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "queue_depth",
			Help:      "Number of CONNECT requests waiting in the admission queue",
		}),
		Admissions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "admitted_total",
			Help:      "Total CONNECT requests accepted onto the queue",
		}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "rejected_total",
			Help:      "Total CONNECT requests rejected, by reason",
		}, []string{"reason"}),
		SessionsComplete: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "completed_total",
			Help:      "Total sessions that reached a terminal state, by outcome",
		}, []string{"outcome"}),
		ReportCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "introspection",
			Name:      "report_cycles_total",
			Help:      "Total SIGUSR1-triggered introspection reports written",
		}),
		BoardFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "board_frames_total",
			Help:      "Total per-tick BOARD frames written by pacman actors across all sessions",
		}),
	}
}

// IncAdmissions implements internal/registrar.Metrics.
func (m *SessionMetrics) IncAdmissions() {
	m.Admissions.Inc()
}

// SetQueueDepth implements internal/registrar.Metrics.
func (m *SessionMetrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// SetSessionsActive implements internal/worker.Metrics.
func (m *SessionMetrics) SetSessionsActive(n int) {
	m.SessionsActive.Set(float64(n))
}

// IncSessionsComplete implements internal/worker.Metrics.
func (m *SessionMetrics) IncSessionsComplete(outcome string) {
	m.SessionsComplete.WithLabelValues(outcome).Inc()
}

// IncBoardFrames implements internal/worker.Metrics.
func (m *SessionMetrics) IncBoardFrames() {
	m.BoardFramesSent.Inc()
}

// IncReportCycles increments the introspection report-cycle counter.
func (m *SessionMetrics) IncReportCycles() {
	m.ReportCycles.Inc()
}

// Registry wraps the session metrics with an opt-in HTTP exposition server.
type Registry struct {
	serviceName    string
	serviceVersion string
	buildTime      string
	gitCommit      string
	logger         *slog.Logger

	Session *SessionMetrics

	server *http.Server
}

// NewRegistry creates a new metrics registry for the session server.
func NewRegistry(serviceName, version, buildTime, gitCommit string, logger *slog.Logger) *Registry {
	reg := &Registry{
		serviceName:    serviceName,
		serviceVersion: version,
		buildTime:      buildTime,
		gitCommit:      gitCommit,
		logger:         logger,
		Session:        NewSessionMetrics("pacmanserver"),
	}

	reg.Session.BuildInfo.WithLabelValues(version, gitCommit, buildTime).Set(1)
	reg.Session.StartTime.SetToCurrentTime()

	return reg
}

// StartMetricsServer starts the HTTP server exposing /metrics. It blocks
// until the listener is closed, so callers run it in its own goroutine.
func (r *Registry) StartMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"%s"}`, r.serviceName)
	})

	r.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	r.logger.Info("starting metrics server", "addr", addr)
	return r.server.ListenAndServe()
}

// StopMetricsServer gracefully stops the metrics HTTP server.
func (r *Registry) StopMetricsServer(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info("stopping metrics server")
	return r.server.Shutdown(ctx)
}
