package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/service"
)

type stubRequestService struct {
	createFn         func(ctx context.Context, r *domain.HospitalRequest) (*domain.HospitalRequest, error)
	advanceRequestFn func(ctx context.Context, id string, target domain.RequestStatus, schedule *service.DeliverySchedule) (*domain.HospitalRequest, error)
	allocateFn       func(ctx context.Context, requestID string, batchID string, units int) (*domain.RequestAllocation, error)
	approveFn        func(ctx context.Context, requestID string, schedule service.DeliverySchedule) (*domain.Delivery, error)
	advanceFn        func(ctx context.Context, deliveryID string, target domain.DeliveryStatus) (*domain.Delivery, error)
}

func (s *stubRequestService) Create(ctx context.Context, r *domain.HospitalRequest) (*domain.HospitalRequest, error) {
	if s.createFn != nil {
		return s.createFn(ctx, r)
	}
	return nil, errors.New("not implemented")
}

func (s *stubRequestService) Get(ctx context.Context, id string) (*domain.HospitalRequest, error) {
	return nil, fmt.Errorf("%w: request %s", domain.ErrNotFound, id)
}

func (s *stubRequestService) ListByBloodBank(
	ctx context.Context,
	bloodBankID string,
	status *domain.RequestStatus,
) ([]domain.HospitalRequest, error) {
	return []domain.HospitalRequest{{ID: "r-1", BloodBankID: bloodBankID, Status: domain.RequestPending}}, nil
}

func (s *stubRequestService) AdvanceRequest(
	ctx context.Context,
	id string,
	target domain.RequestStatus,
	schedule *service.DeliverySchedule,
) (*domain.HospitalRequest, error) {
	if s.advanceRequestFn != nil {
		return s.advanceRequestFn(ctx, id, target, schedule)
	}
	return nil, errors.New("not implemented")
}

func (s *stubRequestService) Allocate(ctx context.Context, requestID string, batchID string, units int) (*domain.RequestAllocation, error) {
	if s.allocateFn != nil {
		return s.allocateFn(ctx, requestID, batchID, units)
	}
	return nil, errors.New("not implemented")
}

func (s *stubRequestService) Allocations(ctx context.Context, requestID string) ([]domain.RequestAllocation, error) {
	return []domain.RequestAllocation{{ID: "al-1", RequestID: requestID, Units: 2}}, nil
}

func (s *stubRequestService) ApproveAndSchedule(
	ctx context.Context,
	requestID string,
	schedule service.DeliverySchedule,
) (*domain.Delivery, error) {
	if s.approveFn != nil {
		return s.approveFn(ctx, requestID, schedule)
	}
	return nil, errors.New("not implemented")
}

func (s *stubRequestService) Advance(ctx context.Context, deliveryID string, target domain.DeliveryStatus) (*domain.Delivery, error) {
	if s.advanceFn != nil {
		return s.advanceFn(ctx, deliveryID, target)
	}
	return nil, errors.New("not implemented")
}

func (s *stubRequestService) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	return &domain.Delivery{ID: id, Status: domain.DeliveryScheduled}, nil
}

func newRequestTestApp(t *testing.T, svc RequestService) *fiber.App {
	t.Helper()
	return newTestApp(t, func(app *fiber.App) error {
		return RegisterRequestRoutes(app, svc)
	})
}

func TestRequestHandler_Create(t *testing.T) {
	t.Parallel()

	svc := &stubRequestService{
		createFn: func(ctx context.Context, r *domain.HospitalRequest) (*domain.HospitalRequest, error) {
			if len(r.BloodItems) != 2 || r.BloodItems[1].BloodType != domain.BloodTypeABNeg {
				t.Fatalf("BloodItems = %+v", r.BloodItems)
			}
			if err := r.Validate(); err != nil {
				return nil, err
			}
			r.ID = "r-1"
			r.Status = domain.RequestPending
			return r, nil
		},
	}
	app := newRequestTestApp(t, svc)

	body := `{"hospitalId":"h1","bloodBankId":"b1","dateNeeded":"2026-03-05",
		"bloodItems":[{"bloodType":"A+","units":2},{"bloodType":"ab-","units":1}]}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/hospital-requests", body)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(respBody))
	}
	var parsed requestResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.ID != "r-1" || parsed.Status != "PENDING" || parsed.BloodItems[1].BloodType != "AB-" {
		t.Fatalf("response = %+v", parsed)
	}

	badInputs := []string{
		`{"hospitalId":"h1","bloodBankId":"b1","bloodItems":[{"bloodType":"A+","units":2}]}`,
		`{"hospitalId":"h1","bloodBankId":"b1","dateNeeded":"2026-03-05","bloodItems":[{"bloodType":"X","units":2}]}`,
		`{"hospitalId":"h1","bloodBankId":"b1","dateNeeded":"2026-03-05","bloodItems":[]}`,
	}
	for _, input := range badInputs {
		resp, _ := performRequest(t, app, http.MethodPost, "/hospital-requests", input)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("status = %d, want 400 for %s", resp.StatusCode, input)
		}
	}
}

func TestRequestHandler_UpdateStatus(t *testing.T) {
	t.Parallel()

	wantDate := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	svc := &stubRequestService{
		advanceRequestFn: func(
			ctx context.Context,
			id string,
			target domain.RequestStatus,
			schedule *service.DeliverySchedule,
		) (*domain.HospitalRequest, error) {
			switch target {
			case domain.RequestScheduled:
				if schedule == nil || !schedule.ScheduledDate.Equal(wantDate) || schedule.EstimatedTime != "2:30 PM" {
					t.Fatalf("schedule = %+v", schedule)
				}
			case domain.RequestInTransit:
				if schedule != nil {
					t.Fatalf("schedule = %+v, want nil for IN_TRANSIT", schedule)
				}
			default:
				return nil, fmt.Errorf("%w: cannot move request to %s", domain.ErrInvalidTransition, target)
			}
			return &domain.HospitalRequest{ID: id, Status: target}, nil
		},
	}
	app := newRequestTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPut, "/hospital-requests/r-1/status",
		`{"status":"scheduled","scheduledDate":"2026-03-04","estimatedTime":"2:30 PM"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	resp, _ = performRequest(t, app, http.MethodPut, "/hospital-requests/r-1/status", `{"status":"scheduled"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without schedule", resp.StatusCode)
	}

	resp, body = performRequest(t, app, http.MethodPut, "/hospital-requests/r-1/status", `{"status":"in transit"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	resp, _ = performRequest(t, app, http.MethodPut, "/hospital-requests/r-1/status", `{"status":"pending"}`)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestRequestHandler_Allocations(t *testing.T) {
	t.Parallel()

	svc := &stubRequestService{
		allocateFn: func(ctx context.Context, requestID string, batchID string, units int) (*domain.RequestAllocation, error) {
			if units > 3 {
				return nil, fmt.Errorf("%w: batch %s is short", domain.ErrInsufficientInventory, batchID)
			}
			return &domain.RequestAllocation{ID: "al-1", RequestID: requestID, BatchID: batchID, Units: units}, nil
		},
	}
	app := newRequestTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/hospital-requests/r-1/allocations", `{"batchId":"b-9","units":2}`)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(body))
	}

	resp, body = performRequest(t, app, http.MethodPost, "/hospital-requests/r-1/allocations", `{"batchId":"b-9","units":5}`)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	var errBody map[string]any
	if err := json.Unmarshal(body, &errBody); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if errBody["code"] != "insufficient_inventory" || errBody["retryable"] != true {
		t.Fatalf("error body = %v", errBody)
	}

	resp, body = performRequest(t, app, http.MethodGet, "/hospital-requests/r-1/allocations", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
}

func TestRequestHandler_Deliveries(t *testing.T) {
	t.Parallel()

	svc := &stubRequestService{
		approveFn: func(ctx context.Context, requestID string, schedule service.DeliverySchedule) (*domain.Delivery, error) {
			return &domain.Delivery{
				ID:            "d-1",
				RequestID:     requestID,
				ScheduledDate: schedule.ScheduledDate,
				EstimatedTime: schedule.EstimatedTime,
				Status:        domain.DeliveryScheduled,
			}, nil
		},
		advanceFn: func(ctx context.Context, deliveryID string, target domain.DeliveryStatus) (*domain.Delivery, error) {
			if target != domain.DeliveryInTransit {
				return nil, fmt.Errorf("%w: delivery is SCHEDULED", domain.ErrInvalidTransition)
			}
			return &domain.Delivery{ID: deliveryID, Status: target}, nil
		},
	}
	app := newRequestTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/deliveries",
		`{"requestId":"r-1","scheduledDate":"2026-03-04","estimatedTime":"14:00"}`)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(body))
	}
	var parsed deliveryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.RequestID != "r-1" || parsed.Status != "SCHEDULED" {
		t.Fatalf("response = %+v", parsed)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/deliveries", `{"scheduledDate":"2026-03-04","estimatedTime":"14:00"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without requestId", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPut, "/deliveries/d-1/status", `{"status":"IN_TRANSIT"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp, _ = performRequest(t, app, http.MethodPut, "/deliveries/d-1/status", `{"status":"complete"}`)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409 when skipping a step", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/deliveries/d-1", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp, _ = performRequest(t, app, http.MethodGet, "/hospital-requests/unknown", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
