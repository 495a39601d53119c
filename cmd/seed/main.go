package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/bloodbank-workflow/internal/domain"
	"github.com/kursadbilgin/bloodbank-workflow/internal/infra/postgresql"
	"github.com/kursadbilgin/bloodbank-workflow/internal/infra/postgresql/migrations"
	"github.com/kursadbilgin/bloodbank-workflow/internal/observability"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"github.com/kursadbilgin/bloodbank-workflow/internal/service"
	"go.uber.org/zap"
)

const defaultBanks = 3

type services struct {
	inventory    *service.InventoryLedger
	appointments *service.AppointmentWorkflow
	requests     *service.RequestWorkflow
}

func main() {
	_ = godotenv.Load()

	logger, err := observability.NewLogger("info")
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		logger.Fatal("DATABASE_DSN is required")
	}
	banks := defaultBanks
	if raw := os.Getenv("SEED_BANKS"); raw != "" {
		if banks, err = strconv.Atoi(raw); err != nil || banks < 1 {
			logger.Fatal("SEED_BANKS must be a positive integer", zap.String("value", raw))
		}
	}

	db, err := postgresql.NewPostgres(dsn, postgresql.PoolOptions{})
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	svc, err := newServices(repository.NewGormStore(db), logger)
	if err != nil {
		logger.Fatal("service initialization failed", zap.Error(err))
	}

	gofakeit.Seed(time.Now().UnixNano())
	ctx := context.Background()

	for i := 0; i < banks; i++ {
		bankID := fmt.Sprintf("bank-%s", gofakeit.UUID()[:8])
		if err := seedBank(ctx, svc, bankID); err != nil {
			logger.Fatal("seed failed", zap.String("bloodBankId", bankID), zap.Error(err))
		}
		logger.Info("seeded blood bank", zap.String("bloodBankId", bankID))
	}

	logger.Info("seed complete", zap.Int("banks", banks))
}

func newServices(store repository.Store, logger *zap.Logger) (*services, error) {
	inventory, err := service.NewInventoryLedger(store, logger)
	if err != nil {
		return nil, err
	}
	points, err := service.NewPointsLedger(store, logger)
	if err != nil {
		return nil, err
	}
	appointments, err := service.NewAppointmentWorkflow(store, points, service.AppointmentOptions{}, logger)
	if err != nil {
		return nil, err
	}
	requests, err := service.NewRequestWorkflow(store, inventory, logger)
	if err != nil {
		return nil, err
	}
	return &services{inventory: inventory, appointments: appointments, requests: requests}, nil
}

func seedBank(ctx context.Context, svc *services, bankID string) error {
	now := time.Now().UTC()

	for _, bloodType := range domain.AllBloodTypes {
		expiry := now.AddDate(0, 0, gofakeit.Number(7, 42))
		if _, err := svc.inventory.Register(ctx, &domain.InventoryBatch{
			BloodBankID: bankID,
			BloodType:   bloodType,
			Quantity:    gofakeit.Number(1, 40),
			ExpiryDate:  &expiry,
		}); err != nil {
			return fmt.Errorf("register %s batch: %w", bloodType, err)
		}
	}

	for i := 0; i < 20; i++ {
		bloodType := domain.AllBloodTypes[gofakeit.Number(0, len(domain.AllBloodTypes)-1)]
		if _, err := svc.appointments.Create(ctx, &domain.Appointment{
			DonorID:             "donor-" + gofakeit.UUID()[:8],
			BloodBankID:         bankID,
			AppointmentDateTime: gofakeit.DateRange(now.Add(-48*time.Hour), now.Add(14*24*time.Hour)).UTC(),
			BloodType:           &bloodType,
			Notes:               gofakeit.Sentence(6),
		}); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
	}

	for i := 0; i < 5; i++ {
		first := domain.AllBloodTypes[gofakeit.Number(0, 3)]
		second := domain.AllBloodTypes[gofakeit.Number(4, len(domain.AllBloodTypes)-1)]
		if _, err := svc.requests.Create(ctx, &domain.HospitalRequest{
			HospitalID:  "hospital-" + gofakeit.UUID()[:8],
			BloodBankID: bankID,
			BloodItems: []domain.BloodItem{
				{BloodType: first, Units: gofakeit.Number(1, 5)},
				{BloodType: second, Units: gofakeit.Number(1, 5)},
			},
			DateNeeded: now.AddDate(0, 0, gofakeit.Number(1, 10)),
			Notes:      gofakeit.Company(),
		}); err != nil {
			return fmt.Errorf("create hospital request: %w", err)
		}
	}

	return nil
}
