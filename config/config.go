package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort     string
	ServerHost     string
	AllowedOrigins []string

	// Database configuration (semantic index)
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// Session configuration
	SessionSecret string
	SessionTTL    time.Duration
	SessionStore  string

	// watsonx.ai configuration
	IBMAPIKey         string
	IBMProjectID      string
	IBMRegion         string
	GenerationModel   string
	EmbeddingModel    string
	GenerationTimeout time.Duration

	// Embedder selects the vector space for ingestion and search: "watsonx"
	// or "local". Both commands must agree.
	Embedder string

	// Vision classifier configuration
	VisionAPIURL   string
	VisionAPIToken string

	// Nutrition catalog
	CatalogPath string

	// Meal photo storage
	S3BucketName string
	AWSRegion    string

	// Logging
	LogLevel  string
	LogFormat string
}

// DSN returns the postgres connection string for the semantic index
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// LoadConfig builds a Config from the .env file, environment variables and
// Docker secrets, in that order of increasing precedence for secrets.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		ServerPort:     v.GetString("SERVER_PORT"),
		ServerHost:     v.GetString("SERVER_HOST"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),

		DBDriver:   strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     secretOrEnv(v, "DB_USER"),
		DBPassword: secretOrEnv(v, "DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSL_MODE"),
		SQLitePath: v.GetString("SQLITE_PATH"),

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: secretOrEnv(v, "REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		RedisURL:      secretOrEnv(v, "REDIS_URL"),

		SessionSecret: secretOrEnv(v, "SESSION_SECRET"),
		SessionTTL:    v.GetDuration("SESSION_TTL"),
		SessionStore:  strings.ToLower(v.GetString("SESSION_STORE")),

		IBMAPIKey:         secretOrEnv(v, "IBM_API_KEY"),
		IBMProjectID:      secretOrEnv(v, "IBM_PROJECT_ID"),
		IBMRegion:         v.GetString("IBM_REGION"),
		GenerationModel:   v.GetString("GENERATION_MODEL"),
		EmbeddingModel:    v.GetString("EMBEDDING_MODEL"),
		GenerationTimeout: v.GetDuration("GENERATION_TIMEOUT"),

		Embedder: strings.ToLower(v.GetString("EMBEDDER")),

		VisionAPIURL:   v.GetString("VISION_API_URL"),
		VisionAPIToken: secretOrEnv(v, "VISION_API_TOKEN"),

		CatalogPath: v.GetString("CATALOG_PATH"),

		S3BucketName: v.GetString("S3_BUCKET_NAME"),
		AWSRegion:    v.GetString("AWS_REGION"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "nutriplan")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("SQLITE_PATH", "nutriplan.db")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("SESSION_STORE", "memory")
	v.SetDefault("GENERATION_MODEL", "ibm/granite-3-8b-instruct")
	v.SetDefault("EMBEDDING_MODEL", "sentence-transformers/all-minilm-l6-v2")
	v.SetDefault("EMBEDDER", "watsonx")
	v.SetDefault("GENERATION_TIMEOUT", 120*time.Second)
	v.SetDefault("VISION_API_URL", "https://api-inference.huggingface.co/models/openai/clip-vit-base-patch32")
	v.SetDefault("CATALOG_PATH", "data/raw/diet_recommendations_dataset.csv.xlsx")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// secretOrEnv prefers the environment value and falls back to a Docker secret
// named after the lower-cased key.
func secretOrEnv(v *viper.Viper, key string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return readSecret(strings.ToLower(key))
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
