// Package telemetry exposes logger counters and gauges to Prometheus.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"envlogger/errcode"
)

type Metrics struct {
	readings        prometheus.Counter
	failures        *prometheus.CounterVec
	lastTemperature prometheus.Gauge
	sequenceID      prometheus.Gauge
	activeSeconds   prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

// NewMetrics registers on reg, or on a private registry when reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envlogger_readings_total",
			Help: "Readings produced.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envlogger_sample_failures_total",
			Help: "Sampling attempts that produced no Reading, by error code.",
		}, []string{"code"}),
		lastTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envlogger_temperature_celsius",
			Help: "Last successfully read temperature.",
		}),
		sequenceID: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envlogger_sequence_id",
			Help: "Sequence id of the last committed Reading.",
		}),
		activeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envlogger_active_seconds",
			Help: "Seconds spent in the current Active period.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envlogger_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "envlogger_http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.readings,
		m.failures,
		m.lastTemperature,
		m.sequenceID,
		m.activeSeconds,
		m.httpRequests,
		m.httpDuration,
	)
	for _, c := range []errcode.Code{errcode.SensorFailure, errcode.ClockUnavailable, errcode.IOFailure} {
		m.failures.WithLabelValues(string(c))
	}
	return m
}

func (m *Metrics) Reading(seq uint32) {
	if m == nil {
		return
	}
	m.readings.Inc()
	m.sequenceID.Set(float64(seq))
}

func (m *Metrics) Temperature(c float64) {
	if m == nil {
		return
	}
	m.lastTemperature.Set(c)
}

func (m *Metrics) Failure(code errcode.Code) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(code)).Inc()
}

func (m *Metrics) Active(d time.Duration) {
	if m == nil {
		return
	}
	m.activeSeconds.Set(d.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and observes their duration under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
