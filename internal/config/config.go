package config

// Config holds all application configuration, grouped by concern.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Storage    StorageConfig    `mapstructure:"storage"    validate:"required"`
	Retention  RetentionConfig  `mapstructure:"retention"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port            int    `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// AuthConfig contains the admin authentication settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// DatabaseConfig contains the job registry database settings. An empty
// URL selects the in-memory registry; set it to run on Postgres.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// GenerationConfig selects and configures the generation provider.
type GenerationConfig struct {
	// Provider is "http" for the standalone generation service or
	// "gemini" for the direct Gemini integration.
	Provider string `mapstructure:"provider" validate:"required,oneof=http gemini"`

	// ServiceURL is the base URL of the generation service (http provider).
	ServiceURL string `mapstructure:"service_url" validate:"omitempty,url"`

	// GeminiAPIKey and GeminiModel configure the gemini provider.
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	GeminiModel  string `mapstructure:"gemini_model"`

	MaxRetries        int `mapstructure:"max_retries"         validate:"gte=0"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=0"`

	// ExecutionCeilingMinutes bounds one background generation run.
	ExecutionCeilingMinutes int `mapstructure:"execution_ceiling_minutes" validate:"gt=0"`
}

// StorageConfig contains the artifact and upload filesystem settings.
type StorageConfig struct {
	ArtifactDir string `mapstructure:"artifact_dir" validate:"required"`

	// UploadDir stages uploaded PDFs; empty means the OS temp directory.
	UploadDir string `mapstructure:"upload_dir"`
}

// RetentionConfig controls the TTL sweep of finished jobs and aged
// artifacts. Zero values disable the sweeper.
type RetentionConfig struct {
	JobTTLHours          int `mapstructure:"job_ttl_hours"          validate:"gte=0"`
	ArtifactTTLHours     int `mapstructure:"artifact_ttl_hours"     validate:"gte=0"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes" validate:"gte=0"`
}
