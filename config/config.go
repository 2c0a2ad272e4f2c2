package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server ServerConfig
	Logger LoggerConfig
	Mongo  MongoConfig
	JWT    JWTConfig
	Seed   SeedConfig
}

type ServerConfig struct {
	AppEnv         string
	Port           string
	BasePath       string
	AllowedOrigins []string
	UploadDir      string
	Timezone       string
}

type LoggerConfig struct {
	Level       string
	Encoding    string
	Development bool
}

type MongoConfig struct {
	URI          string
	Database     string
	Timeout      time.Duration
	Transactions bool
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// SeedConfig describes the bootstrap administrator created on first start.
// Seeding is skipped when AdminEmail or AdminPassword is empty.
type SeedConfig struct {
	AdminEmail    string
	AdminUserName string
	AdminPassword string
}

func LoadEnv() *Config {
	appEnv := getEnv("APP_ENV", "development")

	return &Config{
		Server: ServerConfig{
			AppEnv:         appEnv,
			Port:           getEnv("PORT", "8080"),
			BasePath:       getEnv("API_BASE_PATH", "/api"),
			AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:4200"}),
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			Timezone:       getEnv("TIMEZONE", "UTC"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOGGER_LEVEL", "info"),
			Encoding:    getEnv("LOGGER_ENCODING", "json"),
			Development: appEnv == "development",
		},
		Mongo: MongoConfig{
			URI:          getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:     getEnv("MONGODB_NAME", "bijouterie"),
			Timeout:      getEnvDuration("MONGODB_TIMEOUT", 10*time.Second),
			Transactions: getEnvBool("MONGODB_TRANSACTIONS", false),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getEnvDuration("JWT_TTL", 4*time.Hour),
		},
		Seed: SeedConfig{
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminUserName: getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Mongo.URI == "" {
		return errors.New("MONGODB_URI is required")
	}
	if c.Mongo.Database == "" {
		return errors.New("MONGODB_NAME is required")
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

// EnvFile returns the dotenv file matching the running environment.
func EnvFile() string {
	if os.Getenv("APP_ENV") == "production" {
		return ".env.production"
	}
	return ".env.development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "4h") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
