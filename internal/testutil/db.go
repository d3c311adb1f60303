package testutil

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/config"
	"github.com/tramitia/process-tracker/internal/database"
	"github.com/tramitia/process-tracker/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Now is the reference instant used by test fixtures
var Now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// SetupTestDB opens a migrated database for one test. SQLite in memory is the
// default; TEST_DATABASE_DRIVER=postgres runs against the docker-compose
// PostgreSQL and wipes the tables when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"}
	if getEnvOrDefault("TEST_DATABASE_DRIVER", "sqlite") == "postgres" {
		port, err := strconv.Atoi(getEnvOrDefault("DATABASE_PORT", "5432"))
		require.NoError(t, err)
		cfg = &config.DatabaseConfig{
			Driver:       "postgres",
			Host:         getEnvOrDefault("DATABASE_HOST", "localhost"),
			Port:         port,
			User:         getEnvOrDefault("DATABASE_USER", "tramitia_user"),
			Password:     getEnvOrDefault("DATABASE_PASSWORD", "tramitia_password"),
			Name:         getEnvOrDefault("DATABASE_NAME", "tramitia_test"),
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		}
	}

	db, err := database.NewDatabase(cfg, zap.NewNop())
	require.NoError(t, err, "Failed to open test database")
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		if cfg.Driver == "postgres" {
			CleanupTestData(t, db)
		}
		_ = database.Close(db)
	})
	return db
}

// CleanupTestData deletes all rows, children first
func CleanupTestData(t *testing.T, db *gorm.DB) {
	tables := []string{
		"documents",
		"processes",
		"budget_items",
		"budgets",
		"notifications",
		"price_entries",
		"number_sequences",
	}
	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			t.Logf("Note: Could not clean table %s: %v", table, err)
		}
	}
}

// NewTestProcess builds a pending process with one required document per name
func NewTestProcess(title string, docNames ...string) *domain.Process {
	p := &domain.Process{
		BaseModel: domain.BaseModel{ID: uuid.New(), CreatedAt: Now, UpdatedAt: Now},
		Title:     title,
		ClientID:  "client-1",
		Status:    domain.ProcessStatusPending,
		Priority:  domain.ProcessPriorityMedium,
		Tags:      []string{"senasa"},
		Cost:      decimal.NewFromInt(85000),
	}
	for i, name := range docNames {
		p.Documents = append(p.Documents, domain.Document{
			ID:        uuid.New(),
			ProcessID: p.ID,
			Position:  i,
			Name:      name,
			Kind:      domain.DocumentKindRequired,
			Status:    domain.DocumentStatusPending,
			CreatedAt: Now,
			UpdatedAt: Now,
		})
	}
	return p
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
