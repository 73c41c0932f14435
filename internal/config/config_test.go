package config

import (
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if v := envInt("TEST_INT", 0); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	if v := envInt("TEST_INT_MISSING", 99); v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7, got %d", v)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")
	if v := envDuration("TEST_DUR", time.Second); v != 90*time.Second {
		t.Fatalf("expected 90s, got %s", v)
	}
}

func TestValidateRejectsUnknownService(t *testing.T) {
	cfg := Config{
		Service:             "billing",
		DatabaseURL:         "postgres://localhost/devblocker",
		ConsumerWorkers:     2,
		MaxRequestBodyBytes: 1024,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestValidateAcceptsKnownServices(t *testing.T) {
	for _, svc := range []string{"blocker", "solution", "comment", "notification", "user"} {
		cfg := Config{
			Service:             svc,
			DatabaseURL:         "postgres://localhost/devblocker",
			ConsumerWorkers:     2,
			MaxRequestBodyBytes: 1024,
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("service %s: unexpected error: %v", svc, err)
		}
	}
}
