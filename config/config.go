package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverFile     = "file"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Flutterwave FlutterwaveConfig
	Conference  ConferenceConfig
	Email       EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	FrontendOrigin     string // used for post-checkout redirects and join links
}

// StorageConfig selects the record store backing the repositories.
type StorageConfig struct {
	Driver  string // "postgres" or "file"
	DataDir string // directory for JSON collections when Driver is "file"
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/church?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings for the invite email queue.
// An empty Addr disables the queue; invites are then recorded but not dispatched.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// FlutterwaveConfig holds hosted-checkout gateway credentials.
// An empty SecretKey makes the donation endpoints report 503 not configured.
type FlutterwaveConfig struct {
	SecretKey string
	BaseURL   string
}

// ConferenceConfig holds the external video room provider settings.
type ConferenceConfig struct {
	JitsiDomain string
}

// EmailConfig holds SMTP settings for invitation emails.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "5000"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			FrontendOrigin:     getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),
		},
		Storage: StorageConfig{
			Driver:  getEnv("STORAGE_DRIVER", StorageDriverFile),
			DataDir: getEnv("DATA_DIR", "data"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "church"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Flutterwave: FlutterwaveConfig{
			SecretKey: getEnv("FLW_SECRET_KEY", ""),
			BaseURL:   getEnv("FLW_BASE_URL", "https://api.flutterwave.com/v3"),
		},
		Conference: ConferenceConfig{
			JitsiDomain: getEnv("JITSI_DOMAIN", "meet.jit.si"),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@crh.church"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Christ Reformation House"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
	}

	switch cfg.Storage.Driver {
	case StorageDriverPostgres, StorageDriverFile:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q (use %q or %q)", cfg.Storage.Driver, StorageDriverPostgres, StorageDriverFile)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SplitTrim splits a comma-separated env value into trimmed non-empty parts.
func SplitTrim(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, ",") {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
