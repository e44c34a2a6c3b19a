package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// gRPC config
	assert.Equal(t, "50051", cfg.GRPC.Port)
	assert.True(t, cfg.GRPC.Enabled)

	// Tracing config
	assert.Equal(t, "tracectx", cfg.Tracing.ServiceName)
	assert.Equal(t, EngineNative, cfg.Tracing.Engine)
	assert.Equal(t, 1000, cfg.Tracing.SpanBuffer)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, []string{"/health", "/metrics/**", "/debug/**"}, cfg.Tracing.SkipPaths)

	// Queue config
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 1024, cfg.Queue.Capacity)
	assert.Equal(t, 4096, cfg.Queue.CompressAbove)

	// Payments and rate limiting
	assert.Empty(t, cfg.Payments.URL)
	assert.Equal(t, 2, cfg.Payments.Retries)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	require.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                "9000",
		"HOST":                "127.0.0.1",
		"GRPC_PORT":           "6000",
		"GRPC_ENABLED":        "false",
		"TRACING_SERVICE":     "orders",
		"TRACING_ENGINE":      "OTEL",
		"TRACING_SPAN_BUFFER": "50",
		"TRACING_ENABLED":     "false",
		"QUEUE_WORKERS":       "8",
		"QUEUE_CAPACITY":      "16",
		"TRACING_SKIP_PATHS":  "/health,/internal/**",
		"PAYMENTS_URL":        "http://payments:8080",
		"RATE_LIMIT_ENABLED":  "false",
		"LOG_LEVEL":           "debug",
		"LOG_DEV":             "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "6000", cfg.GRPC.Port)
	assert.False(t, cfg.GRPC.Enabled)
	assert.Equal(t, "orders", cfg.Tracing.ServiceName)
	assert.Equal(t, EngineOTel, cfg.Tracing.Engine, "engine name is normalized")
	assert.Equal(t, 50, cfg.Tracing.SpanBuffer)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, 16, cfg.Queue.Capacity)
	assert.Equal(t, []string{"/health", "/internal/**"}, cfg.Tracing.SkipPaths)
	assert.Equal(t, "http://payments:8080", cfg.Payments.URL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, EngineNative, cfg.Tracing.Engine)
	assert.Equal(t, 4, cfg.Queue.Workers)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown engine", key: "TRACING_ENGINE", val: "zipkin"},
		{name: "zero span buffer", key: "TRACING_SPAN_BUFFER", val: "0"},
		{name: "negative workers", key: "QUEUE_WORKERS", val: "-1"},
		{name: "zero capacity", key: "QUEUE_CAPACITY", val: "0"},
		{name: "not a number", key: "QUEUE_WORKERS", val: "many"},
		{name: "negative compression threshold", key: "QUEUE_COMPRESS_ABOVE", val: "-1"},
		{name: "negative retries", key: "PAYMENTS_RETRIES", val: "-2"},
		{name: "zero rate", key: "RATE_LIMIT_RPS", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg, "falls back to defaults")
		})
	}
}

func TestTracingEngineConfig(t *testing.T) {
	tests := []struct {
		name       string
		engine     string
		wantEngine string
	}{
		{name: "default", engine: "", wantEngine: EngineNative},
		{name: "native", engine: "native", wantEngine: EngineNative},
		{name: "otel", engine: "otel", wantEngine: EngineOTel},
		{name: "mixed case", engine: "Native", wantEngine: EngineNative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean environment
			os.Unsetenv("TRACING_ENGINE")

			if tt.engine != "" {
				t.Setenv("TRACING_ENGINE", tt.engine)
			}

			cfg := LoadOrDefault()
			assert.Equal(t, tt.wantEngine, cfg.Tracing.Engine)
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		dev       string
		wantLevel string
		wantDev   bool
	}{
		{
			name:      "default values",
			wantLevel: "info",
			wantDev:   false,
		},
		{
			name:      "debug level",
			level:     "debug",
			wantLevel: "debug",
			wantDev:   false,
		},
		{
			name:      "development mode",
			dev:       "true",
			wantLevel: "info",
			wantDev:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean environment
			os.Unsetenv("LOG_LEVEL")
			os.Unsetenv("LOG_DEV")

			if tt.level != "" {
				t.Setenv("LOG_LEVEL", tt.level)
			}
			if tt.dev != "" {
				t.Setenv("LOG_DEV", tt.dev)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantLevel, cfg.Logging.Level)
			assert.Equal(t, tt.wantDev, cfg.Logging.Development)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracectx.yaml")
	content := `
server:
  port: "7000"
tracing:
  service: payments
  engine: otel
queue:
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "payments", cfg.Tracing.ServiceName)
	assert.Equal(t, EngineOTel, cfg.Tracing.Engine)
	assert.Equal(t, 2, cfg.Queue.Workers)

	// Untouched keys keep defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1000, cfg.Tracing.SpanBuffer)
	assert.Equal(t, 1024, cfg.Queue.Capacity)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracectx.toml")
	content := `
[tracing]
service = "payments"
skip_paths = ["/health"]

[payments]
url = "http://localhost:9090"

[rate_limit]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "payments", cfg.Tracing.ServiceName)
	assert.Equal(t, []string{"/health"}, cfg.Tracing.SkipPaths)
	assert.Equal(t, "http://localhost:9090", cfg.Payments.URL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, EngineNative, cfg.Tracing.Engine)
	assert.Equal(t, "8000", cfg.Server.Port)
}

func TestLoadFileErrors(t *testing.T) {
	unknown := filepath.Join(t.TempDir(), "tracectx.ini")
	require.NoError(t, os.WriteFile(unknown, []byte("port=1"), 0o600))
	_, err := LoadFile(unknown)
	assert.ErrorContains(t, err, "unsupported config file format")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tracing: [unclosed"), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("tracing:\n  engine: jaeger\n"), 0o600))
	_, err = LoadFile(invalid)
	assert.Error(t, err)
}
