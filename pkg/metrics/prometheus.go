//Package metrics provides Prometheus metrics for the frame pipeline and its sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//Frame latency buckets in milliseconds; inference dominates and sits around 20-200ms.
var defaultLatencyBuckets = []float64{5, 10, 20, 35, 50, 75, 100, 150, 250, 500, 1000}

//Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	framesProcessed  prometheus.Counter
	frameFailures    *prometheus.CounterVec
	frameLatency     prometheus.Histogram
	cameraCuts       prometheus.Counter
	possessionClaims prometheus.Counter
	activeSessions   prometheus.Gauge
	rosterBindings   *prometheus.CounterVec
}

var globalManager = NewManager() //nolint:gochecknoglobals //process-wide metrics

//NewManager creates a metrics manager on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "soccerhud",
		subsystem:        "pipeline",
		histogramBuckets: defaultLatencyBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_processed_total",
		Help:      "Total number of frames that produced a result record",
	})
	m.frameFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frame_failures_total",
		Help:      "Total number of frames reported back as failed, by failure kind",
	}, []string{"kind"})
	m.frameLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frame_latency_milliseconds",
		Help:      "Time from receiving a frame payload to having its result record",
		Buckets:   m.histogramBuckets,
	})
	m.cameraCuts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "camera_cuts_total",
		Help:      "Number of camera cuts that reset the track state",
	})
	m.possessionClaims = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "possession_claims_total",
		Help:      "Number of frame results that carried a possession claim",
	})
	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Number of live sessions",
	})
	m.rosterBindings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "roster",
		Name:      "bind_requests_total",
		Help:      "Roster bind requests by outcome",
	}, []string{"outcome"})
}

//Registry exposes the underlying registry, mostly for tests.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

//Handler serves the manager's registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

//Default returns the process-wide manager.
func Default() *Manager { return globalManager }

//Handler serves the process-wide registry.
func Handler() http.Handler { return globalManager.Handler() }

//RecordFrameProcessed counts a successful frame and observes its latency.
func RecordFrameProcessed(elapsed time.Duration) {
	globalManager.framesProcessed.Inc()
	globalManager.frameLatency.Observe(milliseconds(elapsed))
}

//milliseconds keeps sub-millisecond precision, Duration.Milliseconds truncates it.
func milliseconds(d time.Duration) float64 {
	return d.Seconds() * 1000
}

func RecordFrameFailure(kind string) { globalManager.frameFailures.WithLabelValues(kind).Inc() }

func RecordCameraCut() { globalManager.cameraCuts.Inc() }

func RecordPossessionClaim() { globalManager.possessionClaims.Inc() }

func SessionOpened() { globalManager.activeSessions.Inc() }

func SessionClosed() { globalManager.activeSessions.Dec() }

//RecordBind counts a bind request; matched tells whether a roster entry was found.
func RecordBind(matched bool) {
	outcome := "unmatched"
	if matched {
		outcome = "matched"
	}
	globalManager.rosterBindings.WithLabelValues(outcome).Inc()
}
