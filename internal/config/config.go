package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Warehouse  WarehouseConfig  `mapstructure:"warehouse"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Generation GenerationConfig `mapstructure:"generation"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Export     ExportConfig     `mapstructure:"export"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// WarehouseConfig holds the analytics warehouse connection and view names
type WarehouseConfig struct {
	DSN          string        `mapstructure:"dsn"` // postgres:// connection string
	Views        ViewsConfig   `mapstructure:"views"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// ViewsConfig names the four precomputed views
type ViewsConfig struct {
	BaseEvents        string `mapstructure:"base_events"`
	HistoricalContext string `mapstructure:"historical_context"`
	TrendAnalysis     string `mapstructure:"trend_analysis"`
	MarketRankings    string `mapstructure:"market_rankings"`
}

// LLMConfig selects and configures the text-generation provider
type LLMConfig struct {
	Provider   string          `mapstructure:"provider"` // openai or anthropic
	OpenAI     OpenAIConfig    `mapstructure:"openai"`
	Anthropic  AnthropicConfig `mapstructure:"anthropic"`
	MaxRetries int             `mapstructure:"max_retries"`
}

// OpenAIConfig holds OpenAI API settings
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	BaseURL     string  `mapstructure:"base_url"`
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	BaseURL     string  `mapstructure:"base_url"`
}

// GenerationConfig controls what gets generated per run
type GenerationConfig struct {
	MaxEvents         int    `mapstructure:"max_events"`
	MaxAnglesPerEvent int    `mapstructure:"max_angles_per_event"`
	Platform          string `mapstructure:"platform"`
	PromptsFile       string `mapstructure:"prompts_file"` // optional YAML prompt overrides
}

// BatchConfig holds worker pool settings
type BatchConfig struct {
	MaxWorkers     int           `mapstructure:"max_workers"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay"`
}

// ExportConfig holds file export settings
type ExportConfig struct {
	OutputDir       string   `mapstructure:"output_dir"`
	Formats         []string `mapstructure:"formats"`
	WebhookMaxItems int      `mapstructure:"webhook_max_items"`
}

// WebhookConfig holds automation webhook settings
type WebhookConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// TrackerConfig holds Google Sheets tracker settings
type TrackerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	GenerateCron string `mapstructure:"generate_cron"`
	WebhookCron  string `mapstructure:"webhook_cron"` // empty disables the webhook push job
	HealthPort   string `mapstructure:"health_port"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	LLMRequestsPerMinute     int `mapstructure:"llm_requests_per_minute"`
	WebhookRequestsPerMinute int `mapstructure:"webhook_requests_per_minute"`
}

// ServerConfig holds the operator API settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout, stderr or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".event-content-agent"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("EVENTAGENT")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("warehouse.dsn", "EVENTAGENT_WAREHOUSE_DSN")
	v.BindEnv("llm.provider", "EVENTAGENT_LLM_PROVIDER")
	v.BindEnv("llm.openai.api_key", "EVENTAGENT_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("llm.openai.model", "EVENTAGENT_OPENAI_MODEL", "OPENAI_MODEL")
	v.BindEnv("llm.anthropic.api_key", "EVENTAGENT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("generation.max_events", "EVENTAGENT_MAX_EVENTS", "TOP_PERFORMERS_COUNT")
	v.BindEnv("database.dsn", "EVENTAGENT_DATABASE_DSN")
	v.BindEnv("webhook.enabled", "EVENTAGENT_WEBHOOK_ENABLED")
	v.BindEnv("webhook.url", "EVENTAGENT_WEBHOOK_URL")
	v.BindEnv("tracker.enabled", "EVENTAGENT_TRACKER_ENABLED")
	v.BindEnv("tracker.spreadsheet_id", "EVENTAGENT_TRACKER_SPREADSHEET_ID")
	v.BindEnv("tracker.credentials_file", "EVENTAGENT_TRACKER_CREDENTIALS_FILE")
	v.BindEnv("tracker.service_account_json", "EVENTAGENT_TRACKER_SERVICE_ACCOUNT_JSON")
	v.BindEnv("server.addr", "EVENTAGENT_SERVER_ADDR")
	v.BindEnv("scheduler.health_port", "PORT")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Warehouse defaults
	v.SetDefault("warehouse.views.base_events", "analytics.top_events_last_7_days")
	v.SetDefault("warehouse.views.historical_context", "analytics.top_events_historical_context")
	v.SetDefault("warehouse.views.trend_analysis", "analytics.top_events_trend_analysis")
	v.SetDefault("warehouse.views.market_rankings", "analytics.top_events_market_rankings")
	v.SetDefault("warehouse.query_timeout", "2m")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.openai.max_tokens", 600)
	v.SetDefault("llm.openai.temperature", 0.7)
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.anthropic.max_tokens", 600)
	v.SetDefault("llm.anthropic.temperature", 0.7)

	// Generation defaults
	v.SetDefault("generation.max_events", 10)
	v.SetDefault("generation.max_angles_per_event", 2)
	v.SetDefault("generation.platform", "tiktok")

	// Batch defaults
	v.SetDefault("batch.max_workers", 3)
	v.SetDefault("batch.rate_limit_delay", "1s")

	// Export defaults
	v.SetDefault("export.output_dir", "data/generated_content")
	v.SetDefault("export.formats", []string{"json", "txt"})
	v.SetDefault("export.webhook_max_items", 20)

	// Webhook defaults
	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.timeout", "30s")
	v.SetDefault("webhook.max_retries", 3)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/event-content.db")

	// Tracker defaults
	v.SetDefault("tracker.enabled", false)
	v.SetDefault("tracker.sheet_name", "Content")

	// Scheduler defaults
	v.SetDefault("scheduler.generate_cron", "0 9 * * *") // 9am daily, after the views refresh
	v.SetDefault("scheduler.webhook_cron", "")
	v.SetDefault("scheduler.health_port", "10000")

	// Rate limit defaults
	v.SetDefault("rate_limit.llm_requests_per_minute", 60)
	v.SetDefault("rate_limit.webhook_requests_per_minute", 30)

	// Server defaults
	v.SetDefault("server.addr", ":8080")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn is required")
	}
	return c.ValidateLLM()
}

// ValidateLLM validates only the text-generation settings (dry runs skip it)
func (c *Config) ValidateLLM() error {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("llm.openai.api_key is required")
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("llm.anthropic.api_key is required")
		}
	default:
		return fmt.Errorf("unknown llm.provider %q (want openai or anthropic)", c.LLM.Provider)
	}
	return nil
}

// ActiveModel returns the model name of the configured provider
func (c *Config) ActiveModel() string {
	if c.LLM.Provider == "anthropic" {
		return c.LLM.Anthropic.Model
	}
	return c.LLM.OpenAI.Model
}
