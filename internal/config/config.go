// Package config reads process configuration from the environment. In
// development a .env file in the working directory is loaded first.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	HTTPAddr  string
	JWTSecret string
	LogLevel  string
	GelfAddr  string

	Store         StoreConfig
	Backup        BackupConfig
	Mail          MailConfig
	Auth          AuthConfig
	Seed          SeedConfig
	ReminderEvery time.Duration
}

type StoreConfig struct {
	Backend     string
	DataDir     string
	SQLitePath  string
	DatabaseURL string
	OxiDBHost   string
	OxiDBPort   int
	PoolSize    int
}

type BackupConfig struct {
	Enabled       bool
	Interval      time.Duration
	StartupDelay  time.Duration
	RetentionDays int
	Dir           string
	OnStartup     bool
}

type MailConfig struct {
	Provider string
	APIURL   string
	APIKey   string
	From     string
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
}

type AuthConfig struct {
	RequireEmailCode     bool
	VerificationFailOpen bool
	SessionTTL           time.Duration
}

type SeedConfig struct {
	OnStart         bool
	AdminNationalID string
	AdminPassword   string
	AdminName       string
	AdminEmail      string
}

// Load reads the environment. A missing .env file is not an error.
func Load() *Config {
	if getEnv("APP_ENV", "development") == "development" {
		_ = godotenv.Load()
	}
	return &Config{
		Env:       getEnv("APP_ENV", "development"),
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		JWTSecret: getEnv("JWT_SECRET", "healthy-city-dev-secret-change-me"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		GelfAddr:  getEnv("GELF_ADDR", ""),
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			DataDir:     getEnv("STORE_DATA_DIR", ""),
			SQLitePath:  getEnv("SQLITE_PATH", "healthycity.db"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			OxiDBHost:   getEnv("OXIDB_HOST", "127.0.0.1"),
			OxiDBPort:   getEnvInt("OXIDB_PORT", 4444),
			PoolSize:    getEnvInt("OXIDB_POOL_SIZE", 3),
		},
		Backup: BackupConfig{
			Enabled:       getEnvBool("BACKUP_ENABLED", true),
			Interval:      time.Duration(getEnvInt("BACKUP_INTERVAL_HOURS", 24)) * time.Hour,
			StartupDelay:  time.Duration(getEnvInt("BACKUP_STARTUP_DELAY_SECONDS", 30)) * time.Second,
			RetentionDays: getEnvInt("BACKUP_RETENTION_DAYS", 14),
			Dir:           getEnv("BACKUP_DIR", "backups"),
			OnStartup:     getEnvBool("BACKUP_ON_STARTUP", true),
		},
		Mail: MailConfig{
			Provider: strings.ToLower(getEnv("MAIL_PROVIDER", "log")),
			APIURL:   getEnv("MAIL_API_URL", ""),
			APIKey:   getEnv("MAIL_API_KEY", ""),
			From:     getEnv("MAIL_FROM", "no-reply@healthycity.local"),
			SMTPHost: getEnv("SMTP_HOST", ""),
			SMTPPort: getEnvInt("SMTP_PORT", 587),
			SMTPUser: getEnv("SMTP_USER", ""),
			SMTPPass: getEnv("SMTP_PASS", ""),
		},
		Auth: AuthConfig{
			RequireEmailCode:     getEnvBool("AUTH_REQUIRE_EMAIL_CODE", false),
			VerificationFailOpen: getEnvBool("VERIFICATION_FAIL_OPEN", true),
			SessionTTL:           24 * time.Hour,
		},
		Seed: SeedConfig{
			OnStart:         getEnvBool("SEED_ON_START", true),
			AdminNationalID: getEnv("SEED_ADMIN_NATIONAL_ID", "1000000000"),
			AdminPassword:   getEnv("SEED_ADMIN_PASSWORD", "admin123"),
			AdminName:       getEnv("SEED_ADMIN_NAME", "System Governor"),
			AdminEmail:      getEnv("SEED_ADMIN_EMAIL", "admin@healthycity.local"),
		},
		ReminderEvery: time.Duration(getEnvInt("REMINDER_INTERVAL_MINUTES", 60)) * time.Minute,
	}
}

// Development reports whether the process runs with development defaults.
func (c *Config) Development() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}
