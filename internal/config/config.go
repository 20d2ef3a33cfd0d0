package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// JWTSecret signs and verifies API bearer tokens. Required outside
	// development.
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// DeliveryTimeoutMS bounds how long a single outbound channel send may
	// block before the attempt is recorded as timed out.
	DeliveryTimeoutMS int `mapstructure:"DELIVERY_TIMEOUT_MS"`

	// CrisisHotline and CrisisTextLine are included in every follow-up plan.
	CrisisHotline  string `mapstructure:"CRISIS_HOTLINE"`
	CrisisTextLine string `mapstructure:"CRISIS_TEXT_LINE"`

	// EmergencyNumber is staged (never auto-dialed) for the
	// emergency-services handoff.
	EmergencyNumber string `mapstructure:"EMERGENCY_NUMBER"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DELIVERY_TIMEOUT_MS", 5000)
	v.SetDefault("CRISIS_HOTLINE", "988")
	v.SetDefault("CRISIS_TEXT_LINE", "Text HOME to 741741")
	v.SetDefault("EMERGENCY_NUMBER", "911")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("DELIVERY_TIMEOUT_MS")
	v.BindEnv("CRISIS_HOTLINE")
	v.BindEnv("CRISIS_TEXT_LINE")
	v.BindEnv("EMERGENCY_NUMBER")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DeliveryTimeout returns the outbound send timeout as a duration.
func (c *Config) DeliveryTimeout() time.Duration {
	if c.DeliveryTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.DeliveryTimeoutMS) * time.Millisecond
}

// Validate checks that the configuration is safe to run. Outside development
// mode a JWT secret is mandatory so that the API cannot start unauthenticated.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf(
			"JWT_SECRET is required when ENV=%q. Refusing to start without authentication configuration", c.Env)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}
	if c.CrisisHotline == "" {
		return fmt.Errorf("CRISIS_HOTLINE must not be empty")
	}
	return nil
}
