package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Extraction ExtractionConfig
	Gemini     GeminiConfig
	Azure      AzureConfig
	Storage    StorageConfig
	Jobs       JobsConfig
	Logger     LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
}

// ExtractionConfig selects which extraction backend the orchestrator uses.
type ExtractionConfig struct {
	Backend string // "gemini" or "azure"
	Timeout time.Duration
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type AzureConfig struct {
	Endpoint     string
	Key          string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type StorageConfig struct {
	Bucket       string
	SignedURLTTL time.Duration
}

type JobsConfig struct {
	BufferSize int
	Workers    int
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// No .env file is fine: environment variables are used directly
	// (Docker/K8s deployments).

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	extractionTimeout, _ := strconv.Atoi(getEnv("EXTRACTION_TIMEOUT_SECONDS", "60"))
	pollInterval, _ := strconv.Atoi(getEnv("AZURE_POLL_INTERVAL_SECONDS", "2"))
	pollTimeout, _ := strconv.Atoi(getEnv("AZURE_POLL_TIMEOUT_SECONDS", "60"))
	signedURLTTL, _ := strconv.Atoi(getEnv("STORAGE_SIGNED_URL_TTL_MINUTES", "15"))
	jobsBuffer, _ := strconv.Atoi(getEnv("JOBS_BUFFER_SIZE", "64"))
	jobsWorkers, _ := strconv.Atoi(getEnv("JOBS_WORKERS", "2"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "receiptd"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
		},
		Extraction: ExtractionConfig{
			Backend: getEnv("EXTRACTION_BACKEND", "gemini"),
			Timeout: time.Duration(extractionTimeout) * time.Second,
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Azure: AzureConfig{
			Endpoint:     getEnv("DOCUMENT_INTELLIGENCE_ENDPOINT", ""),
			Key:          getEnv("DOCUMENT_INTELLIGENCE_KEY", ""),
			PollInterval: time.Duration(pollInterval) * time.Second,
			PollTimeout:  time.Duration(pollTimeout) * time.Second,
		},
		Storage: StorageConfig{
			Bucket:       getEnv("STORAGE_BUCKET", "squirll-receipt-images"),
			SignedURLTTL: time.Duration(signedURLTTL) * time.Minute,
		},
		Jobs: JobsConfig{
			BufferSize: jobsBuffer,
			Workers:    jobsWorkers,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
