package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"gorm.io/gorm"
)

func createOutboxTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000006_create_outbox",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.OutboxEventModel{}, &repository.OutboxAttemptModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_outbox_events_due ON outbox_events (next_attempt_at) WHERE status = 'PENDING'`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.OutboxAttemptModel{}, &repository.OutboxEventModel{})
		},
	}
}
