package database

import (
	"cleanup-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Postgres or pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind PgBouncer-style poolers.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// AutoMigrate creates or updates every table the payment core owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.CleanupRequest{},
		&domain.Hold{},
		&domain.Donation{},
		&domain.Payout{},
		&domain.PayoutAccount{},
		&domain.RecoveryTask{},
	)
}
