package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, "ingestion_db", cfg.DBName)
	assert.Equal(t, "8095", cfg.Port)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.JobTimeBudget)
	assert.Equal(t, 2*time.Minute, cfg.HeartbeatTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("IMPORT_BATCH_SIZE", "25")
	t.Setenv("IMPORT_JOB_TIME_BUDGET", "30m")
	t.Setenv("IMPORT_SESSION_TTL", "48h")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, 5433, cfg.DBPort)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 30*time.Minute, cfg.JobTimeBudget)
	assert.Equal(t, 48*time.Hour, cfg.SessionTTL)
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("IMPORT_JOB_TIME_BUDGET", "soon")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.JobTimeBudget)
}
