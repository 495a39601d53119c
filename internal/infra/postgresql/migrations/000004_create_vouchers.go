package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"gorm.io/gorm"
)

func createVouchersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_vouchers",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.VoucherModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.VoucherModel{})
		},
	}
}
