// Package metrics exposes Prometheus collectors for capture, motion detection
// and the HTTP layer.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	framesCaptured    prometheus.Counter
	captureErrors     prometheus.Counter
	motionEvents      prometheus.Counter
	motionActive      prometheus.Gauge
	changePercentage  prometheus.Gauge
	snapshotsArchived prometheus.Counter
	snapshotsDropped  prometheus.Counter
	viewers           prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camserver_frames_captured_total",
			Help: "Total frames acquired from the camera.",
		}),
		captureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camserver_capture_errors_total",
			Help: "Total failed camera captures.",
		}),
		motionEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camserver_motion_events_total",
			Help: "Total motion events (idle to motion transitions).",
		}),
		motionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camserver_motion_active",
			Help: "1 while motion is detected, 0 otherwise.",
		}),
		changePercentage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camserver_motion_change_percentage",
			Help: "Most recent percentage of changed pixels.",
		}),
		snapshotsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camserver_snapshots_archived_total",
			Help: "Total snapshots written to disk.",
		}),
		snapshotsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camserver_snapshots_dropped_total",
			Help: "Total snapshots dropped because the archive queue was full.",
		}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camserver_websocket_viewers",
			Help: "Connected websocket viewers.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.framesCaptured,
		m.captureErrors,
		m.motionEvents,
		m.motionActive,
		m.changePercentage,
		m.snapshotsArchived,
		m.snapshotsDropped,
		m.viewers,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// WrapHandler records request count and duration for route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) FrameCaptured() {
	if m == nil {
		return
	}
	m.framesCaptured.Inc()
}

func (m *Metrics) CaptureError() {
	if m == nil {
		return
	}
	m.captureErrors.Inc()
}

// MotionObserved records the outcome of one detector call.
func (m *Metrics) MotionObserved(active bool, change float64) {
	if m == nil {
		return
	}
	if active {
		m.motionActive.Set(1)
	} else {
		m.motionActive.Set(0)
	}
	m.changePercentage.Set(change)
}

func (m *Metrics) MotionEvent() {
	if m == nil {
		return
	}
	m.motionEvents.Inc()
}

func (m *Metrics) SnapshotArchived() {
	if m == nil {
		return
	}
	m.snapshotsArchived.Inc()
}

func (m *Metrics) SnapshotDropped() {
	if m == nil {
		return
	}
	m.snapshotsDropped.Inc()
}

func (m *Metrics) SetViewers(n int) {
	if m == nil {
		return
	}
	m.viewers.Set(float64(n))
}
