package database

import (
	"log"
	"os"

	"dataforge/internal/domain/billing"
	"dataforge/internal/domain/subscriptions"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	DB = db

	if err := DB.AutoMigrate(
		&subscriptions.Subscription{},
		&billing.EventLedgerEntry{},
		&billing.HistoryEntry{},
	); err != nil {
		log.Fatal("AutoMigrate error:", err)
	}
}
