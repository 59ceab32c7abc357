package migrations

import (
	"log"

	"gorm.io/gorm"

	"lsmarket/migration"
	"lsmarket/models"
)

func init() {
	if err := migration.Register("20260901_initial_schema", Migration20260901InitialSchema); err != nil {
		log.Fatalf("Failed to register migration 20260901_initial_schema: %v", err)
	}
}

// Migration20260901InitialSchema creates the market, account, position and
// trade tables.
func Migration20260901InitialSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Market{},
		&models.Account{},
		&models.OutcomePosition{},
		&models.Trade{},
	)
}
