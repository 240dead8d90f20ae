package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so host state cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "API_BASE_PATH",
		"DATABASE_URL", "FEEDBACK_STORE_PATH", "UOW_TIMEOUT", "CONFLICT_RETRIES",
		"GENERATOR_MODE", "GENERATOR_URL", "GENERATOR_TIMEOUT", "GENERATOR_CORPUS",
		"GENERATOR_THRESHOLD", "CORS_ALLOWED_ORIGINS", "OTEL_ENABLED",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("mode=%q level=%q", cfg.GinMode, cfg.LogLevel)
	}
	if cfg.DatabaseURL != "sqlite:app.db" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.UoWTimeout != 5*time.Second || cfg.ConflictRetries != 3 {
		t.Fatalf("uow=%v retries=%d", cfg.UoWTimeout, cfg.ConflictRetries)
	}
	if cfg.Generator.Mode != "local" || cfg.Generator.Threshold != 0.32 {
		t.Fatalf("generator = %+v", cfg.Generator)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("LOG_LEVEL", "WARNING") // normalized to warn
	t.Setenv("GIN_MODE", "bogus")    // normalized to release
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("CONFLICT_RETRIES", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" || cfg.LogLevel != "warn" || cfg.GinMode != "release" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Fatalf("APIBasePath = %q, want normalized", cfg.APIBasePath)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.ConflictRetries != 7 {
		t.Fatalf("retries = %d", cfg.ConflictRetries)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad log level", "LOG_LEVEL", "loud", "LOG_LEVEL"},
		{"zero retries", "CONFLICT_RETRIES", "0", "CONFLICT_RETRIES"},
		{"bad generator mode", "GENERATOR_MODE", "psychic", "GENERATOR_MODE"},
		{"threshold out of range", "GENERATOR_THRESHOLD", "1.5", "GENERATOR_THRESHOLD"},
		{"sampler out of range", "OTEL_TRACES_SAMPLER_ARG", "2", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoad_RemoteGeneratorRequiresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("GENERATOR_MODE", "remote")
	if _, err := Load(); err == nil {
		t.Fatal("remote mode without URL must fail")
	}

	t.Setenv("GENERATOR_URL", "http://model:8000/generate")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generator.RemoteURL != "http://model:8000/generate" {
		t.Fatalf("RemoteURL = %q", cfg.Generator.RemoteURL)
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "nope")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_ = MustLoad()
}
