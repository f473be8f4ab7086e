package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// setRequiredEnv provides the minimum environment for Load to succeed.
func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("EXAMHIVE_AUTH_JWT_SECRET", testSecret)
	t.Setenv("EXAMHIVE_GENERATION_SERVICE_URL", "http://localhost:9000")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "http", cfg.Generation.Provider)
	assert.Equal(t, 10, cfg.Generation.ExecutionCeilingMinutes)
	assert.Equal(t, "./generated", cfg.Storage.ArtifactDir)
	assert.Equal(t, 24, cfg.Retention.JobTTLHours)
	assert.Equal(t, 168, cfg.Retention.ArtifactTTLHours)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EXAMHIVE_SERVER_PORT", "9999")
	t.Setenv("EXAMHIVE_SERVER_LOG_LEVEL", "debug")
	t.Setenv("EXAMHIVE_STORAGE_ARTIFACT_DIR", "/var/lib/examhive/generated")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/var/lib/examhive/generated", cfg.Storage.ArtifactDir)
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	t.Setenv("EXAMHIVE_AUTH_JWT_SECRET", "short")
	t.Setenv("EXAMHIVE_GENERATION_SERVICE_URL", "http://localhost:9000")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidLogLevel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EXAMHIVE_SERVER_LOG_LEVEL", "loud")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_HTTPProviderRequiresServiceURL(t *testing.T) {
	t.Setenv("EXAMHIVE_AUTH_JWT_SECRET", testSecret)
	t.Setenv("EXAMHIVE_GENERATION_PROVIDER", "http")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service_url")
}

func TestLoad_GeminiProviderRequiresAPIKey(t *testing.T) {
	t.Setenv("EXAMHIVE_AUTH_JWT_SECRET", testSecret)
	t.Setenv("EXAMHIVE_GENERATION_PROVIDER", "gemini")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini_api_key")
}

func TestLoad_GeminiProvider(t *testing.T) {
	t.Setenv("EXAMHIVE_AUTH_JWT_SECRET", testSecret)
	t.Setenv("EXAMHIVE_GENERATION_PROVIDER", "gemini")
	t.Setenv("EXAMHIVE_GENERATION_GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Generation.GeminiModel)
}
