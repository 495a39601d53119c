package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/repository"
	"gorm.io/gorm"
)

func createPointsLedgerTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_points_ledger",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.PointsAccountModel{}, &repository.PointsEntryModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PointsEntryModel{}, &repository.PointsAccountModel{})
		},
	}
}
