// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Redis         RedisConfig             `mapstructure:"redis"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Model         ModelConfig             `mapstructure:"model"`
	Catalog       CatalogConfig           `mapstructure:"catalog"`
	Recovery      RecoveryConfig          `mapstructure:"recovery"`
	Dispatch      DispatchConfig          `mapstructure:"dispatch"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`

	// EnvFile is the .env file that was loaded, if any.
	EnvFile string `mapstructure:"-"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	UsePlaintext   bool   `mapstructure:"use_plaintext"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// ModelConfig points at the model-inference service.
type ModelConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	APIKey           string `mapstructure:"api_key"`
	Timeout          int    `mapstructure:"timeout"` // milliseconds
	MaxRetries       int    `mapstructure:"max_retries"`
	MaxNewTokens     int    `mapstructure:"max_new_tokens"`
	SystemPromptPath string `mapstructure:"system_prompt_path"`
}

// CatalogConfig selects the intent catalog. An empty path uses the
// embedded default.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type RecoveryConfig struct {
	AcceptTruncatedStrings bool `mapstructure:"accept_truncated_strings"`
}

type DispatchConfig struct {
	Stream StreamDispatchConfig `mapstructure:"stream"`
	Topic  TopicDispatchConfig  `mapstructure:"topic"`
}

type StreamDispatchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Key     string `mapstructure:"key"`
	MaxLen  int64  `mapstructure:"max_len"`
}

type TopicDispatchConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	TopicARN string `mapstructure:"topic_arn"`
	Region   string `mapstructure:"region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	MetricsAddress string  `mapstructure:"metrics_address"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
