package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"gorm.io/gorm"
)

func createInventoryBatchesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_inventory_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.InventoryBatchModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_inventory_bank_type_status ON inventory_batches (blood_bank_id, blood_type, status)`,
				`CREATE INDEX IF NOT EXISTS idx_inventory_expiry ON inventory_batches (expiry_date) WHERE status <> 'EXPIRED'`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.InventoryBatchModel{})
		},
	}
}
