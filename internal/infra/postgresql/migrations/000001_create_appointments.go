package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"gorm.io/gorm"
)

func createAppointmentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_appointments",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AppointmentModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_appointments_bank_date ON appointments (blood_bank_id, appointment_date_time)`,
				`CREATE INDEX IF NOT EXISTS idx_appointments_open_due ON appointments (appointment_date_time) WHERE status IN ('PENDING', 'SCHEDULED')`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AppointmentModel{})
		},
	}
}
