package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"gorm.io/gorm"
)

func createHospitalRequestTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_hospital_requests",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(
				&repository.HospitalRequestModel{},
				&repository.HospitalRequestItemModel{},
				&repository.DeliveryModel{},
				&repository.RequestAllocationModel{},
			); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_hospital_requests_bank_status ON hospital_requests (blood_bank_id, status)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.RequestAllocationModel{},
				&repository.DeliveryModel{},
				&repository.HospitalRequestItemModel{},
				&repository.HospitalRequestModel{},
			)
		},
	}
}
