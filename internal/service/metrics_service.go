package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the generation engine.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationTotal    *prometheus.CounterVec
	occurrencesPlaced  prometheus.Counter
	conflictsTotal     *prometheus.CounterVec
	evaluationScore    prometheus.Gauge

	requestCount    uint64
	generationCount uint64
	conflictCount   uint64
}

// NewMetricsService registers the collectors on a private registry.
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

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_generation_duration_seconds",
		Help:    "Wall-clock duration of generation runs",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"outcome"})

	generationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_generation_runs_total",
		Help: "Total generation runs by outcome",
	}, []string{"outcome"})

	occurrencesPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_occurrences_placed_total",
		Help: "Total occurrences produced by generation runs",
	})

	conflictsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_conflicts_total",
		Help: "Conflicts reported by generation and audit runs, by type",
	}, []string{"type", "severity"})

	evaluationScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_last_evaluation_score",
		Help: "Global score of the most recently evaluated schedule",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, generationDuration, generationTotal, occurrencesPlaced, conflictsTotal, evaluationScore, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		generationDuration: generationDuration,
		generationTotal:    generationTotal,
		occurrencesPlaced:  occurrencesPlaced,
		conflictsTotal:     conflictsTotal,
		evaluationScore:    evaluationScore,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// ObserveGeneration records the outcome of one generation run.
func (m *MetricsService) ObserveGeneration(outcome string, seconds float64, occurrences int) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(outcome).Observe(seconds)
	m.generationTotal.WithLabelValues(outcome).Inc()
	m.occurrencesPlaced.Add(float64(occurrences))
	atomic.AddUint64(&m.generationCount, 1)
}

// CountConflicts tallies reported conflicts by type and severity.
func (m *MetricsService) CountConflicts(conflicts []models.Conflict) {
	if m == nil {
		return
	}
	for _, conflict := range conflicts {
		m.conflictsTotal.WithLabelValues(string(conflict.Type), string(conflict.Severity)).Inc()
	}
	atomic.AddUint64(&m.conflictCount, uint64(len(conflicts)))
}

// ObserveEvaluation publishes the latest global score.
func (m *MetricsService) ObserveEvaluation(globalScore float64) {
	if m == nil {
		return
	}
	m.evaluationScore.Set(globalScore)
}

// EngineSnapshot is a lightweight counters view for health endpoints.
type EngineSnapshot struct {
	RequestsTotal  uint64    `json:"requestsTotal"`
	GenerationRuns uint64    `json:"generationRuns"`
	ConflictsTotal uint64    `json:"conflictsTotal"`
	Goroutines     int       `json:"goroutines"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// Snapshot returns aggregated counters for API consumption.
func (m *MetricsService) Snapshot() EngineSnapshot {
	if m == nil {
		return EngineSnapshot{}
	}
	return EngineSnapshot{
		RequestsTotal:  atomic.LoadUint64(&m.requestCount),
		GenerationRuns: atomic.LoadUint64(&m.generationCount),
		ConflictsTotal: atomic.LoadUint64(&m.conflictCount),
		Goroutines:     runtime.NumGoroutine(),
		GeneratedAt:    time.Now().UTC(),
	}
}
