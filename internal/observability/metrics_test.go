package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsWorkflowCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncTransition("Appointment", "COMPLETE")
	metrics.AddSweptAppointments("missed", 3)
	metrics.AddSweptAppointments("failed", 0)
	metrics.AddInventoryUnits("allocated", "o+", 2)
	metrics.AddPoints("AWARD", 100)

	if got := testutil.ToFloat64(metrics.transitionsTotal.WithLabelValues("appointment", "complete")); got != 1 {
		t.Fatalf("workflow_transitions_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.sweptAppointments.WithLabelValues("missed")); got != 3 {
		t.Fatalf("swept_appointments_total = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(metrics.sweptAppointments); got != 1 {
		t.Fatalf("swept_appointments_total series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.inventoryUnitsTotal.WithLabelValues("allocated", "O+")); got != 2 {
		t.Fatalf("inventory_units_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.pointsTotal.WithLabelValues("award")); got != 100 {
		t.Fatalf("reward_points_total = %v, want 100", got)
	}
}

func TestMetricsOutboxCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncOutboxPublished("RabbitMQ")
	metrics.IncOutboxFailed("webhook", "retry_exhausted")
	metrics.IncOutboxRetryScheduled("webhook")
	metrics.ObserveOutboxPublishDuration("webhook", 40*time.Millisecond)
	metrics.IncNotifierInFlight("bloodbank.notifications")
	metrics.DecNotifierInFlight("bloodbank.notifications")

	if got := testutil.ToFloat64(metrics.outboxPublishedTotal.WithLabelValues("rabbitmq")); got != 1 {
		t.Fatalf("outbox_published_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.outboxFailedTotal.WithLabelValues("webhook", "retry_exhausted")); got != 1 {
		t.Fatalf("outbox_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.outboxRetryTotal.WithLabelValues("webhook")); got != 1 {
		t.Fatalf("outbox_retry_scheduled_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notifierInflight.WithLabelValues("bloodbank.notifications")); got != 0 {
		t.Fatalf("notifier_inflight = %v, want 0", got)
	}
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncTransition("voucher", "COMPLETED")
	metrics.AddPoints("spend", 10)
	metrics.IncOutboxPublished("log")
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
