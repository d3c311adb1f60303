package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/config"
	"github.com/tramitia/process-tracker/internal/database"
	"go.uber.org/zap"
)

func TestNewDatabase_SQLite(t *testing.T) {
	db, err := database.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.AutoMigrate(db))
	assert.NoError(t, database.HealthCheck(context.Background(), db))

	for _, table := range []string{"price_entries", "budgets", "budget_items", "processes", "documents", "notifications", "number_sequences"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestNewDatabase_UnknownDriver(t *testing.T) {
	_, err := database.NewDatabase(&config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}
