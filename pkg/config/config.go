package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Database    DatabaseConfig
	Redis       RedisConfig
	Clinic      ClinicConfig
	Reminders   ReminderConfig
	WhatsApp    WhatsAppConfig
	SMTP        SMTPConfig
	Calendar    CalendarConfig
	AIAssistant AIAssistantConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ClinicConfig holds clinic-wide scheduling settings
type ClinicConfig struct {
	Timezone               string
	DefaultReminderChannel string
}

// ReminderConfig holds reminder dispatcher settings
type ReminderConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

// WhatsAppConfig holds WhatsApp Cloud API credentials
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
}

// SMTPConfig holds mail delivery configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// CalendarConfig holds Google Calendar sync configuration
type CalendarConfig struct {
	Enabled     bool
	AccessToken string
}

// AIAssistantConfig holds the intent-detection assistant settings.
// The flag is threaded explicitly into constructors, never read ad hoc.
type AIAssistantConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables.
// A .env file is loaded first when present, matching local development setups.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "clinic_scheduling"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Clinic: ClinicConfig{
			Timezone:               getEnv("CLINIC_TIMEZONE", "UTC"),
			DefaultReminderChannel: getEnv("REMINDER_DEFAULT_CHANNEL", "whatsapp"),
		},
		Reminders: ReminderConfig{
			SweepInterval: getEnvAsDuration("REMINDER_SWEEP_INTERVAL", 5*time.Minute),
			BatchSize:     getEnvAsInt("REMINDER_BATCH_SIZE", 100),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@clinic.local"),
		},
		Calendar: CalendarConfig{
			Enabled:     getEnvAsBool("GOOGLE_CALENDAR_ENABLED", false),
			AccessToken: getEnv("GOOGLE_CALENDAR_ACCESS_TOKEN", ""),
		},
		AIAssistant: AIAssistantConfig{
			Enabled: getEnvAsBool("AI_ASSISTANT_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location resolves the clinic timezone, falling back to UTC on bad input
func (c *ClinicConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
