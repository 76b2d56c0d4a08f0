package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the recruitment pipeline's domain counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	transitionsTotal   *prometheus.CounterVec
	invitesSent        prometheus.Counter
	invitesResponded   *prometheus.CounterVec
	recalculations     prometheus.Counter
	scoringFailures    prometheus.Counter
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	outboxUnprocessed  prometheus.Gauge
}

// NewMetricsService registers the service's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_transitions_total",
		Help: "Total stage transitions applied",
	}, []string{"final"})

	invitesSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invitations_sent_total",
		Help: "Total invitations sent",
	})

	invitesResponded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invitations_responded_total",
		Help: "Total invitation responses",
	}, []string{"accepted"})

	recalculations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compatibility_recalculations_total",
		Help: "Total compatibility recalculation batches executed",
	})

	scoringFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compatibility_scoring_failures_total",
		Help: "Total per-pair scoring failures",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	outboxUnprocessed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_unprocessed_events",
		Help: "Outbox events awaiting dispatch at last poll",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitionsTotal, invitesSent,
		invitesResponded, recalculations, scoringFailures, cacheHits, cacheMisses,
		outboxUnprocessed, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		transitionsTotal:  transitionsTotal,
		invitesSent:       invitesSent,
		invitesResponded:  invitesResponded,
		recalculations:    recalculations,
		scoringFailures:   scoringFailures,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		outboxUnprocessed: outboxUnprocessed,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordTransition counts one applied stage transition.
func (m *MetricsService) RecordTransition(final bool) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(fmt.Sprintf("%t", final)).Inc()
}

// RecordInviteSent counts one sent invitation.
func (m *MetricsService) RecordInviteSent() {
	if m == nil {
		return
	}
	m.invitesSent.Inc()
}

// RecordInviteResponded counts one invitation response.
func (m *MetricsService) RecordInviteResponded(accepted bool) {
	if m == nil {
		return
	}
	m.invitesResponded.WithLabelValues(fmt.Sprintf("%t", accepted)).Inc()
}

// RecordRecalculation counts one recalculation batch.
func (m *MetricsService) RecordRecalculation() {
	if m == nil {
		return
	}
	m.recalculations.Inc()
}

// RecordScoringFailure counts one per-pair scoring failure.
func (m *MetricsService) RecordScoringFailure() {
	if m == nil {
		return
	}
	m.scoringFailures.Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// SetOutboxBacklog records the unprocessed event count at the last poll.
func (m *MetricsService) SetOutboxBacklog(n int) {
	if m == nil {
		return
	}
	m.outboxUnprocessed.Set(float64(n))
}
