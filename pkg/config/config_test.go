package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "clinic_scheduling", cfg.Database.Database)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "UTC", cfg.Clinic.Timezone)
	assert.Equal(t, "whatsapp", cfg.Clinic.DefaultReminderChannel)
	assert.Equal(t, 5*time.Minute, cfg.Reminders.SweepInterval)
	assert.Equal(t, 100, cfg.Reminders.BatchSize)
	assert.False(t, cfg.Calendar.Enabled)
	assert.False(t, cfg.AIAssistant.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("CLINIC_TIMEZONE", "Africa/Lagos")
	t.Setenv("REMINDER_DEFAULT_CHANNEL", "email")
	t.Setenv("REMINDER_SWEEP_INTERVAL", "30s")
	t.Setenv("REMINDER_BATCH_SIZE", "25")
	t.Setenv("AI_ASSISTANT_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "Africa/Lagos", cfg.Clinic.Timezone)
	assert.Equal(t, "email", cfg.Clinic.DefaultReminderChannel)
	assert.Equal(t, 30*time.Second, cfg.Reminders.SweepInterval)
	assert.Equal(t, 25, cfg.Reminders.BatchSize)
	assert.True(t, cfg.AIAssistant.Enabled)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "secret", Database: "clinic", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=clinic sslmode=disable",
		cfg.DatabaseDSN(),
	)
}

func TestClinicLocation(t *testing.T) {
	lagos := ClinicConfig{Timezone: "Africa/Lagos"}
	assert.Equal(t, "Africa/Lagos", lagos.Location().String())

	// bad input falls back to UTC rather than failing the daemon
	bad := ClinicConfig{Timezone: "Mars/Olympus"}
	assert.Equal(t, time.UTC, bad.Location())
}
