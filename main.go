package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lsmarket/engine"
	"lsmarket/migration"
	_ "lsmarket/migration/migrations"
	"lsmarket/security"
	"lsmarket/server"
	"lsmarket/setup"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "setup/setup.yaml"
	}
	cfg, err := setup.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := migration.RunAll(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	collateral := engine.NewAccountCollateral()
	ledger := engine.NewConditionalTokenLedger()
	mm := engine.NewMarketMaker(db, collateral, ledger, cfg.Economics.SolverMaxIterations)

	handler := server.Handler(server.Deps{
		DB:         db,
		Config:     cfg,
		Market:     mm,
		Collateral: collateral,
		Sanitizer:  security.NewService(),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("lsmarket listening on %s (%s)", addr, cfg.Database.Driver)
	log.Fatal(http.ListenAndServe(addr, handler))
}

func openDatabase(cfg *setup.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
