package bootstrap

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	LogLevel   string
	Version    string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration

	FrameTTL      time.Duration
	RateLimit     time.Duration
	MinConfidence float64

	YouTubeAPIKey string
	SearchTimeout time.Duration
}

func LoadConfig() *Config {
	// missing .env is fine, the environment may be set directly
	_ = godotenv.Load()

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Version:    getEnv("APP_VERSION", "dev"),

		DatabaseDSN: getEnv("DATABASE_DSN", "repaircam.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "qwen2.5vl:7b"),
		OllamaTimeout: getEnvDuration("OLLAMA_TIMEOUT", 120*time.Second),

		FrameTTL:      getEnvDuration("FRAME_TTL", 60*time.Second),
		RateLimit:     getEnvDuration("VISION_RATE_LIMIT", 2*time.Second),
		MinConfidence: getEnvFloat("MIN_CONFIDENCE", 0.5),

		YouTubeAPIKey: getEnv("YOUTUBE_API_KEY", ""),
		SearchTimeout: getEnvDuration("SEARCH_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
