package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	DBMaxRetries     int

	// Store selects the catalog backend: "postgres" or "memory".
	Store string

	ListingRootTitle string
	HomeTitle        string
	MaxErrorsShown   int

	HTTPAddr string
	LogLevel string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "catalog"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "catalog123"),
		PostgresDB:       getEnv("POSTGRES_DB", "catalog_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		DBMaxRetries:     getEnvInt("DB_MAX_RETRIES", 5),

		Store: strings.ToLower(getEnv("CATALOG_STORE", "postgres")),

		ListingRootTitle: getEnv("LISTING_ROOT_TITLE", "Products"),
		HomeTitle:        getEnv("HOME_TITLE", "Home"),
		MaxErrorsShown:   getEnvInt("MAX_ERRORS_SHOWN", 10),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[config] Invalid int for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}
