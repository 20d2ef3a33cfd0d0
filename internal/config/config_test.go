package config

import (
	"testing"
	"time"
)

func TestValidate_ProductionRequiresSecret(t *testing.T) {
	cfg := &Config{Env: "production", CrisisHotline: "988"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing JWT_SECRET in production")
	}
}

func TestValidate_DevAllowsNoSecret(t *testing.T) {
	cfg := &Config{Env: "development", CrisisHotline: "988"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_ShortSecretRejected(t *testing.T) {
	cfg := &Config{Env: "production", JWTSecret: "short", CrisisHotline: "988"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short JWT_SECRET")
	}
}

func TestValidate_HotlineRequired(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty CRISIS_HOTLINE")
	}
}

func TestDeliveryTimeout(t *testing.T) {
	cfg := &Config{DeliveryTimeoutMS: 250}
	if cfg.DeliveryTimeout() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.DeliveryTimeout())
	}
	cfg = &Config{}
	if cfg.DeliveryTimeout() != 5*time.Second {
		t.Errorf("expected default 5s, got %v", cfg.DeliveryTimeout())
	}
}
