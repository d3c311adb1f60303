package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "local", cfg.Storage.Mode)
	assert.Equal(t, 180*24*time.Hour, cfg.Pricing.StaleAfter())
	assert.Equal(t, 30*24*time.Hour, cfg.Jobs.BudgetValidity())
	assert.Equal(t, "0 6 * * *", cfg.Jobs.ReconcileCron)
	assert.Equal(t, 2*time.Second, cfg.Validation.Delay())

	fallback, err := cfg.Pricing.Fallback()
	require.NoError(t, err)
	require.NotNil(t, fallback)
	assert.True(t, decimal.NewFromInt(1000).Equal(*fallback))
}

func TestPricingConfig_Fallback(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		fallback, err := (&PricingConfig{}).Fallback()
		require.NoError(t, err)
		assert.Nil(t, fallback)
	})

	t.Run("explicit zero is kept", func(t *testing.T) {
		fallback, err := (&PricingConfig{FallbackPrice: "0"}).Fallback()
		require.NoError(t, err)
		require.NotNil(t, fallback)
		assert.True(t, fallback.IsZero())
	})
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("PRICING_STALEAFTERDAYS", "90")
	t.Setenv("JOBS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 90, cfg.Pricing.StaleAfterDays)
	assert.False(t, cfg.Jobs.Enabled)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")
	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:   DatabaseConfig{Driver: "sqlite"},
			Pricing:    PricingConfig{FallbackPrice: "1000", StaleAfterDays: 180},
			Jobs:       JobsConfig{BudgetValidityDays: 30},
			Validation: ValidationConfig{Threshold: 0.8, Confidence: 0.9},
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"bad fallback":       func(c *Config) { c.Pricing.FallbackPrice = "mucho" },
		"negative fallback":  func(c *Config) { c.Pricing.FallbackPrice = "-1" },
		"negative stale":     func(c *Config) { c.Pricing.StaleAfterDays = -1 },
		"no budget validity": func(c *Config) { c.Jobs.BudgetValidityDays = 0 },
		"threshold above 1":  func(c *Config) { c.Validation.Threshold = 1.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

type staticSecrets map[string]string

func (s staticSecrets) GetSecretOrEnv(ctx context.Context, secretName, envVar string) (string, error) {
	if v, ok := s[secretName]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestApplySecrets(t *testing.T) {
	t.Run("vault values override defaults", func(t *testing.T) {
		cfg := &Config{Database: DatabaseConfig{Host: "localhost", Password: "default"}}
		err := applySecrets(context.Background(), cfg, staticSecrets{
			"POSTGRES-MAIN-HOST":        "db.internal",
			"POSTGRES-MAIN-PASSWORD":    "vault-pw",
			"storage-connection-string": "DefaultEndpointsProtocol=https",
		})
		require.NoError(t, err)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, "vault-pw", cfg.Database.Password)
		assert.Equal(t, "DefaultEndpointsProtocol=https", cfg.Storage.CloudConnectionString)
	})

	t.Run("missing database password fails", func(t *testing.T) {
		cfg := &Config{}
		err := applySecrets(context.Background(), cfg, staticSecrets{})
		assert.Error(t, err)
	})
}
