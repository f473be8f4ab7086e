package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables (EXAMHIVE_ prefix)
// and an optional config.yaml in the working directory. Environment
// variables take precedence. The result is validated before it is
// returned so startup fails fast on bad configuration.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 15)
	v.SetDefault("generation.provider", "http")
	v.SetDefault("generation.gemini_model", "gemini-2.0-flash")
	v.SetDefault("generation.max_retries", 3)
	v.SetDefault("generation.retry_delay_seconds", 2)
	v.SetDefault("generation.execution_ceiling_minutes", 10)
	v.SetDefault("storage.artifact_dir", "./generated")
	v.SetDefault("retention.job_ttl_hours", 24)
	v.SetDefault("retention.artifact_ttl_hours", 168)
	v.SetDefault("retention.sweep_interval_minutes", 15)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("EXAMHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not surface env-only keys through Unmarshal, so
	// bind every key we read explicitly.
	for _, key := range []string{
		"server.port", "server.log_level", "server.shutdown_timeout",
		"auth.jwt_secret",
		"database.url",
		"generation.provider", "generation.service_url",
		"generation.gemini_api_key", "generation.gemini_model",
		"generation.max_retries", "generation.retry_delay_seconds",
		"generation.execution_ceiling_minutes",
		"storage.artifact_dir", "storage.upload_dir",
		"retention.job_ttl_hours", "retention.artifact_ttl_hours",
		"retention.sweep_interval_minutes",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateProvider(cfg.Generation); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateProvider enforces the per-provider required settings that
// struct tags cannot express.
func validateProvider(gen GenerationConfig) error {
	switch gen.Provider {
	case "http":
		if gen.ServiceURL == "" {
			return fmt.Errorf("invalid configuration: generation.service_url is required for the http provider")
		}
	case "gemini":
		if gen.GeminiAPIKey == "" {
			return fmt.Errorf("invalid configuration: generation.gemini_api_key is required for the gemini provider")
		}
	}
	return nil
}
