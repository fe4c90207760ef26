package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected 10s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
	if cfg.LessonCacheTTL != 30*time.Second {
		t.Fatalf("expected 30s cache ttl, got %v", cfg.LessonCacheTTL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors origin, got %v", cfg.CORSOrigins)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected cache disabled by default, got %q", cfg.RedisAddr)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.HTTPAddr)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", cfg.ShutdownTimeout)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("expected redis addr, got %q", cfg.RedisAddr)
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}

func TestStorefrontFromEnv(t *testing.T) {
	t.Setenv("STOREFRONT_BASE_URL", "http://store.test/ ")
	t.Setenv("STOREFRONT_VALIDATION_POLICY", "lenient")

	cfg, err := StorefrontFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://store.test" {
		t.Fatalf("expected trimmed base url, got %q", cfg.BaseURL)
	}
	if !cfg.OptimisticInventory {
		t.Fatalf("expected optimistic inventory on by default")
	}
	if cfg.DecrementConcurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.DecrementConcurrency)
	}
	if cfg.ValidationPolicy != "lenient" {
		t.Fatalf("expected lenient, got %s", cfg.ValidationPolicy)
	}
}

func TestStorefrontFromEnvRejectsZeroConcurrency(t *testing.T) {
	t.Setenv("STOREFRONT_DECREMENT_CONCURRENCY", "0")
	if _, err := StorefrontFromEnv(); err == nil {
		t.Fatalf("expected error for zero concurrency")
	}
}
