package envconf

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

type nested struct {
	Addr string `env:"NESTED_ADDR" envDefault:"localhost:6379"`
}

type testConfig struct {
	Port     uint16        `env:"TEST_PORT"`
	Backend  string        `env:"TEST_BACKEND" envDefault:"memory"`
	Timeout  time.Duration `env:"TEST_TIMEOUT" envDefault:"10s"`
	LogLevel slog.Level    `env:"TEST_LOG_LEVEL" envDefault:"INFO"`
	Nested   nested
}

//nolint:paralleltest // mutates process env
func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("TEST_PORT", "8080")

	cfg := new(testConfig)
	if err := Load(cfg); err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Fatalf("port: want 8080, got %d", cfg.Port)
	}
	if cfg.Backend != "memory" {
		t.Fatalf("backend default: want memory, got %q", cfg.Backend)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("timeout default: want 10s, got %s", cfg.Timeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("log level default: want INFO, got %s", cfg.LogLevel)
	}
	if cfg.Nested.Addr != "localhost:6379" {
		t.Fatalf("nested default: got %q", cfg.Nested.Addr)
	}

	t.Setenv("TEST_BACKEND", "postgres")
	t.Setenv("TEST_TIMEOUT", "250ms")

	cfg = new(testConfig)
	if err := Load(cfg); err != nil {
		t.Fatalf("load with overrides: %v", err)
	}

	if cfg.Backend != "postgres" {
		t.Fatalf("backend override: got %q", cfg.Backend)
	}
	if cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("timeout override: got %s", cfg.Timeout)
	}
}

//nolint:paralleltest // mutates process env
func TestLoad_MissingRequired(t *testing.T) {
	type cfg struct {
		Needed string `env:"TEST_DEFINITELY_UNSET_VAR"`
	}

	err := Load(new(cfg))
	if !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("want ErrMissingRequired, got %v", err)
	}
}

func TestLoad_RejectsNonPointer(t *testing.T) {
	t.Parallel()

	err := Load(testConfig{})
	if err == nil {
		t.Fatal("want error for non-pointer destination")
	}
}
