// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/schoolroute/backend/internal/domain"
)

type Config struct {
	Port     string `validate:"required,numeric"`
	Env      string `validate:"oneof=development production test"`
	LogLevel string

	DatabaseURL string
	SchoolsFile string

	RoutingProvider   string `validate:"oneof=google ors"`
	GoogleMapsAPIKey  string `validate:"required_if=RoutingProvider google"`
	GoogleRoutesURL   string `validate:"omitempty,url"`
	ORSURL            string `validate:"omitempty,url"`
	ORSAPIKey         string
	Avoid             []domain.Avoid
	ProviderTimeout   time.Duration `validate:"gt=0"`
	ProviderRateLimit int           `validate:"gte=0"` // requests per minute, 0 = unlimited

	NATSURL string `validate:"omitempty,url"`
}

// Load reads .env (if present) into the environment and builds a validated Config
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a validated Config from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:             get("PORT", "8080"),
		Env:              get("GO_ENV", "development"),
		LogLevel:         get("LOG_LEVEL", "info"),
		DatabaseURL:      get("DATABASE_URL", ""),
		SchoolsFile:      get("SCHOOLS_FILE", ""),
		RoutingProvider:  strings.ToLower(get("ROUTING_PROVIDER", "google")),
		GoogleMapsAPIKey: get("GOOGLE_MAPS_API_KEY", ""),
		GoogleRoutesURL:  get("GOOGLE_ROUTES_URL", ""),
		ORSURL:           get("ORS_URL", ""),
		ORSAPIKey:        get("ORS_API_KEY", ""),
		NATSURL:          get("NATS_URL", ""),
	}

	avoid, err := domain.ParseAvoidList(get("ROUTE_AVOID", ""))
	if err != nil {
		return nil, fmt.Errorf("config: ROUTE_AVOID: %w", err)
	}
	cfg.Avoid = avoid

	cfg.ProviderTimeout, err = time.ParseDuration(get("PROVIDER_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("config: PROVIDER_TIMEOUT: %w", err)
	}

	cfg.ProviderRateLimit, err = strconv.Atoi(get("PROVIDER_RATE_PER_MINUTE", "60"))
	if err != nil {
		return nil, fmt.Errorf("config: PROVIDER_RATE_PER_MINUTE: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// ProviderBaseURL returns the base URL configured for the active provider
func (c *Config) ProviderBaseURL() string {
	if c.RoutingProvider == "ors" {
		return c.ORSURL
	}
	return c.GoogleRoutesURL
}

// ProviderAPIKey returns the API key configured for the active provider
func (c *Config) ProviderAPIKey() string {
	if c.RoutingProvider == "ors" {
		return c.ORSAPIKey
	}
	return c.GoogleMapsAPIKey
}
