package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	jobDuration  *prometheus.HistogramVec
	jobTotal     *prometheus.CounterVec
	solveSeconds *prometheus.HistogramVec
	slotsFilled  prometheus.Counter
	slotsOpen    prometheus.Counter
	quickFill    *prometheus.CounterVec
}

// NewMetricsService registers the engine's Prometheus collectors.
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

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_job_duration_seconds",
		Help:    "Wall-clock duration of schedule jobs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"status"})

	jobTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_jobs_total",
		Help: "Schedule jobs by terminal status",
	}, []string{"status"})

	solveSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solver_duration_seconds",
		Help:    "Solver search time by result status",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30},
	}, []string{"status"})

	slotsFilled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_slots_filled_total",
		Help: "Slots committed with an assignee",
	})

	slotsOpen := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_slots_open_total",
		Help: "Slots left open after a schedule job",
	})

	quickFill := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quick_fill_resolutions_total",
		Help: "Vacancy resolutions by outcome",
	}, []string{"outcome"})

	registry.MustRegister(requestDuration, requestTotal, jobDuration, jobTotal, solveSeconds, slotsFilled, slotsOpen, quickFill)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		jobDuration:     jobDuration,
		jobTotal:        jobTotal,
		solveSeconds:    solveSeconds,
		slotsFilled:     slotsFilled,
		slotsOpen:       slotsOpen,
		quickFill:       quickFill,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// GinMiddleware records request duration and counts per route.
func (m *MetricsService) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// ObserveJob records a finished schedule job.
func (m *MetricsService) ObserveJob(status string, duration time.Duration, filled, open int) {
	m.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.jobTotal.WithLabelValues(status).Inc()
	m.slotsFilled.Add(float64(filled))
	m.slotsOpen.Add(float64(open))
}

// ObserveSolve records one solver attempt.
func (m *MetricsService) ObserveSolve(status string, duration time.Duration) {
	m.solveSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveQuickFill records a vacancy resolution outcome.
func (m *MetricsService) ObserveQuickFill(outcome string) {
	m.quickFill.WithLabelValues(outcome).Inc()
}
