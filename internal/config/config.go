package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"

	ProviderEcho   = "echo"
	ProviderOpenAI = "openai"
	ProviderHTTP   = "http"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort          string   `env:"HTTP_PORT" envDefault:"8000"`
	StorageBackend    string   `env:"STORAGE_BACKEND" envDefault:"memory"`
	DatabaseURL       string   `env:"DATABASE_URL"`
	RedisAddr         string   `env:"REDIS_ADDR"`
	RedisPassword     string   `env:"REDIS_PASSWORD"`
	RedisDB           int      `env:"REDIS_DB" envDefault:"0"`
	JWTSecret         string   `env:"JWT_SECRET"`
	SessionTTLMinutes int      `env:"SESSION_TTL_MINUTES" envDefault:"10080"`
	DemoUsers         []string `env:"DEMO_USERS" envSeparator:"," envDefault:"user_1:admin:admin123:admin@nutricoach.com,user_2:demo:demo123:demo@nutricoach.com"`

	LLMProvider       string `env:"LLM_PROVIDER" envDefault:"echo"`
	LLMAPIKey         string `env:"LLM_API_KEY"`
	LLMBaseURL        string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel          string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeoutSeconds int    `env:"LLM_TIMEOUT_SECONDS" envDefault:"60"`
	LLMSystemPrompt   string `env:"LLM_SYSTEM_PROMPT" envDefault:"You are NutrAICoach, a friendly nutrition coach. Answer concisely and practically."`

	LoginMaxAttempts   int `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindowMinutes int `env:"LOGIN_WINDOW_MINUTES" envDefault:"15"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
	LogFormat   string   `env:"LOG_FORMAT" envDefault:"json"`
	APIBaseURL  string   `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate comprueba combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres storage"))
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for redis storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	switch c.LLMProvider {
	case ProviderEcho:
	case ProviderOpenAI:
		if c.LLMAPIKey == "" {
			errs = append(errs, errors.New("LLM_API_KEY is required for the openai provider"))
		}
	case ProviderHTTP:
		if c.LLMBaseURL == "" {
			errs = append(errs, errors.New("LLM_BASE_URL is required for the http provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	if c.SessionTTLMinutes <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_MINUTES must be positive"))
	}
	if c.LLMTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}
