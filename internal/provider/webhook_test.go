package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/queue"
)

func testEvent(t *testing.T) domain.OutboxEvent {
	t.Helper()

	event, err := domain.NewOutboxEvent(
		domain.EventAppointmentCompleted,
		domain.AggregateAppointment,
		"appt-1",
		map[string]string{"donorId": "donor-1", "status": "COMPLETE"},
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("NewOutboxEvent() error = %v", err)
	}
	return event
}

func TestWebhookProviderSendSuccess(t *testing.T) {
	t.Parallel()

	event := testEvent(t)
	var gotBody queue.EventMessage
	var gotEventID, gotEventType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotEventID = r.Header.Get("X-Event-ID")
		gotEventType = r.Header.Get("X-Event-Type")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("X-Request-ID", "receipt-1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	p, err := NewWebhookProvider(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookProvider() error = %v", err)
	}
	if p.Name() != "webhook" {
		t.Fatalf("Name() = %q, want webhook", p.Name())
	}

	resp, err := p.Send(context.Background(), event)
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("StatusCode = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if resp.MessageID != "receipt-1" {
		t.Fatalf("MessageID = %q, want %q", resp.MessageID, "receipt-1")
	}
	if gotEventID != event.ID {
		t.Fatalf("X-Event-ID = %q, want %q", gotEventID, event.ID)
	}
	if gotEventType != "APPOINTMENT_COMPLETED" {
		t.Fatalf("X-Event-Type = %q, want APPOINTMENT_COMPLETED", gotEventType)
	}
	if gotBody.EventID != event.ID || gotBody.AggregateID != "appt-1" {
		t.Fatalf("body = %+v, want event %s for appt-1", gotBody, event.ID)
	}
	if string(gotBody.Payload) != string(event.Payload) {
		t.Fatalf("payload = %s, want %s", gotBody.Payload, event.Payload)
	}
}

func TestWebhookProviderSendStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "request timeout is transient", statusCode: http.StatusRequestTimeout, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "gone is permanent", statusCode: http.StatusGone, wantTransient: false},
		{name: "internal server error is transient", statusCode: http.StatusInternalServerError, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("receiver failed"))
			}))
			defer server.Close()

			p, err := NewWebhookProvider(server.URL)
			if err != nil {
				t.Fatalf("NewWebhookProvider() error = %v", err)
			}

			_, err = p.Send(context.Background(), testEvent(t))
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var providerErr *ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if providerErr.StatusCode != tc.statusCode {
				t.Fatalf("ProviderError.StatusCode = %d, want %d", providerErr.StatusCode, tc.statusCode)
			}
		})
	}
}

func TestWebhookProviderSendTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	p, err := NewWebhookProviderWithClient(server.URL, client)
	if err != nil {
		t.Fatalf("NewWebhookProviderWithClient() error = %v", err)
	}

	_, err = p.Send(context.Background(), testEvent(t))
	if err == nil {
		t.Fatal("expected timeout error")
	}

	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestWebhookProviderInvalidEventIsPermanent(t *testing.T) {
	t.Parallel()

	p, err := NewWebhookProvider("http://127.0.0.1:1/events")
	if err != nil {
		t.Fatalf("NewWebhookProvider() error = %v", err)
	}

	_, err = p.Send(context.Background(), domain.OutboxEvent{EventType: domain.EventPointsAwarded})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Fatalf("IsTransient() = true, want false (err=%v)", err)
	}
}

func TestNewWebhookProviderRejectsBadEndpoint(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "   ", "not a url"} {
		if _, err := NewWebhookProvider(endpoint); err == nil {
			t.Fatalf("NewWebhookProvider(%q) expected error", endpoint)
		}
	}
}
