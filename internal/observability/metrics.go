package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bloodbank_workflow"

// Metrics stores Prometheus collectors used by the API, the workflows and the
// background jobs.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	transitionsTotal      *prometheus.CounterVec
	sweptAppointments     *prometheus.CounterVec
	inventoryUnitsTotal   *prometheus.CounterVec
	pointsTotal           *prometheus.CounterVec
	outboxPublishedTotal  *prometheus.CounterVec
	outboxFailedTotal     *prometheus.CounterVec
	outboxRetryTotal      *prometheus.CounterVec
	outboxPublishDuration *prometheus.HistogramVec
	notifierInflight      *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_transitions_total",
				Help:      "Committed status transitions by workflow and target status.",
			},
			[]string{"workflow", "status"},
		),
		sweptAppointments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swept_appointments_total",
				Help:      "Overdue appointments handled by the sweeper by outcome.",
			},
			[]string{"outcome"},
		),
		inventoryUnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inventory_units_total",
				Help:      "Blood units moved out of or back into inventory by operation and blood type.",
			},
			[]string{"operation", "blood_type"},
		),
		pointsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reward_points_total",
				Help:      "Reward points written to the ledger by entry kind.",
			},
			[]string{"kind"},
		),
		outboxPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_published_total",
				Help:      "Total number of workflow events published.",
			},
			[]string{"sink"},
		),
		outboxFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_failed_total",
				Help:      "Total number of workflow events that ended in failed state.",
			},
			[]string{"sink", "reason"},
		),
		outboxRetryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_retry_scheduled_total",
				Help:      "Total number of workflow events scheduled for another attempt.",
			},
			[]string{"sink"},
		),
		outboxPublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "outbox_publish_duration_seconds",
				Help:      "Event sink send duration in seconds grouped by sink.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"sink"},
		),
		notifierInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notifier_inflight",
				Help:      "Current number of events being forwarded by the notifier grouped by queue.",
			},
			[]string{"queue"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.transitionsTotal,
		m.sweptAppointments,
		m.inventoryUnitsTotal,
		m.pointsTotal,
		m.outboxPublishedTotal,
		m.outboxFailedTotal,
		m.outboxRetryTotal,
		m.outboxPublishDuration,
		m.notifierInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncTransition(workflow string, status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(normalizeLabel(workflow), normalizeLabel(status)).Inc()
}

func (m *Metrics) AddSweptAppointments(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptAppointments.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

func (m *Metrics) AddInventoryUnits(operation string, bloodType string, units int) {
	if m == nil || units <= 0 {
		return
	}
	// Blood type labels keep their sign, e.g. "O+".
	m.inventoryUnitsTotal.WithLabelValues(normalizeLabel(operation), strings.ToUpper(strings.TrimSpace(bloodType))).Add(float64(units))
}

func (m *Metrics) AddPoints(kind string, points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsTotal.WithLabelValues(normalizeLabel(kind)).Add(float64(points))
}

func (m *Metrics) IncOutboxPublished(sink string) {
	if m == nil {
		return
	}
	m.outboxPublishedTotal.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (m *Metrics) IncOutboxFailed(sink string, reason string) {
	if m == nil {
		return
	}
	m.outboxFailedTotal.WithLabelValues(normalizeLabel(sink), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncOutboxRetryScheduled(sink string) {
	if m == nil {
		return
	}
	m.outboxRetryTotal.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (m *Metrics) ObserveOutboxPublishDuration(sink string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.outboxPublishDuration.WithLabelValues(normalizeLabel(sink)).Observe(seconds)
}

func (m *Metrics) IncNotifierInFlight(queue string) {
	if m == nil {
		return
	}
	m.notifierInflight.WithLabelValues(normalizeLabel(queue)).Inc()
}

func (m *Metrics) DecNotifierInFlight(queue string) {
	if m == nil {
		return
	}
	m.notifierInflight.WithLabelValues(normalizeLabel(queue)).Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
