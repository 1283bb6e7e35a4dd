package database

import (
	"testing"

	"cleanup-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAutoMigrate_CreatesAllTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	for _, model := range []interface{}{
		&domain.CleanupRequest{}, &domain.Hold{}, &domain.Donation{},
		&domain.Payout{}, &domain.PayoutAccount{}, &domain.RecoveryTask{},
	} {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
	// Second run is a no-op.
	require.NoError(t, AutoMigrate(db))
}
