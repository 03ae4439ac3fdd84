package web

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/door-alerter/internal/logic"
	"github.com/sweeney/door-alerter/internal/status"
)

const namespace = "door_alerter"

// Metrics exposes tracker state and HTTP request counts on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// NewMetrics registers collectors that read the tracker on every scrape.
func NewMetrics(tracker *status.Tracker) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
	}

	counter := func(name, help string, pick func(logic.Counts) int) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(tracker.Snapshot().Counts)) })
	}
	gauge := func(name, help string, pick func(status.Snapshot) bool) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return boolFloat(pick(tracker.Snapshot())) })
	}

	m.registry.MustRegister(
		m.requests,
		collectors.NewGoCollector(),
		counter("openings_total", "Door openings detected.", func(c logic.Counts) int { return c.Openings }),
		counter("closings_total", "Door closings detected.", func(c logic.Counts) int { return c.Closings }),
		counter("suppressed_total", "Openings suppressed by an authorized token.", func(c logic.Counts) int { return c.Suppressed }),
		counter("incidents_created_total", "Incidents created.", func(c logic.Counts) int { return c.IncidentsCreated }),
		counter("incidents_resolved_total", "Incidents resolved.", func(c logic.Counts) int { return c.IncidentsResolved }),
		counter("notify_failures_total", "Failed chat or webhook notifications.", func(c logic.Counts) int { return c.NotifyFailures }),
		gauge("door_open", "1 when the door is open.", func(s status.Snapshot) bool { return s.Door == logic.StateOpen }),
		gauge("incident_open", "1 when an incident is held.", func(s status.Snapshot) bool { return s.IncidentOpen }),
		gauge("mqtt_connected", "1 when the MQTT broker connection is up.", func(s status.Snapshot) bool { return s.MQTTConnected }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since start.",
		}, func() float64 { return tracker.Snapshot().Uptime().Seconds() }),
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

// WrapHandler counts requests by route and response status.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
