package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the campaign service
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Image      ImageConfig      `mapstructure:"image"`
	Search     SearchConfig     `mapstructure:"search"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Events     EventsConfig     `mapstructure:"events"`
	MediaPlan  MediaPlanConfig  `mapstructure:"media_plan"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel    string `mapstructure:"log_level"`
	Development bool   `mapstructure:"development"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LLMConfig selects and configures the text/embedding provider
type LLMConfig struct {
	Provider            string        `mapstructure:"provider"` // gemini, openai
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	Model               string        `mapstructure:"model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ManifestTemperature float64       `mapstructure:"manifest_temperature"`
	ManifestMaxTokens   int           `mapstructure:"manifest_max_tokens"`
}

func (c LLMConfig) Validate() error {
	switch c.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("llm.provider must be gemini or openai, got %q", c.Provider)
	}
	if c.ManifestMaxTokens <= 0 {
		return fmt.Errorf("llm.manifest_max_tokens must be > 0")
	}
	return nil
}

// ImageConfig configures the diffusion model endpoint
type ImageConfig struct {
	APIToken       string        `mapstructure:"api_token"`
	Endpoint       string        `mapstructure:"endpoint"`
	Model          string        `mapstructure:"model"`
	InferenceSteps int           `mapstructure:"inference_steps"`
	LoadingWait    time.Duration `mapstructure:"loading_wait"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// SearchConfig configures the web search provider
type SearchConfig struct {
	Provider   string `mapstructure:"provider"` // tavily, brave, serper
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	MaxResults int    `mapstructure:"max_results"`
}

func (c SearchConfig) Validate() error {
	switch c.Provider {
	case "", "tavily", "brave", "serper":
		return nil
	default:
		return fmt.Errorf("search.provider %q is not supported", c.Provider)
	}
}

// ModerationConfig controls the content moderation adapter
type ModerationConfig struct {
	// FailClosed reports provider errors as failed moderation instead of passed.
	FailClosed  bool    `mapstructure:"fail_closed"`
	Temperature float64 `mapstructure:"temperature"`
}

// RetryConfig sets the waits between tool call attempts
type RetryConfig struct {
	LinearDelay     time.Duration `mapstructure:"linear_delay"`
	ExponentialUnit time.Duration `mapstructure:"exponential_unit"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Backend       string         `mapstructure:"backend"` // file, postgres, redis
	DataDir       string         `mapstructure:"data_dir"`
	AssetsDir     string         `mapstructure:"assets_dir"`
	PublicBaseURL string         `mapstructure:"public_base_url"`
	LockTTL       time.Duration  `mapstructure:"lock_ttl"`
	Redis         RedisConfig    `mapstructure:"redis"`
	Postgres      PostgresConfig `mapstructure:"postgres"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "file":
		if strings.TrimSpace(s.DataDir) == "" {
			return fmt.Errorf("storage.data_dir required for the file backend")
		}
	case "postgres":
		if err := s.Postgres.Validate(); err != nil {
			return err
		}
	case "redis":
		if err := s.Redis.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.backend must be file, postgres or redis, got %q", s.Backend)
	}
	if s.LockTTL <= 0 {
		return fmt.Errorf("storage.lock_ttl must be > 0")
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, sslmode)
}

// EventsConfig controls lifecycle event publishing
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Stream  string `mapstructure:"stream"`
}

// MediaPlanConfig holds media plan defaults
type MediaPlanConfig struct {
	DurationDays int    `mapstructure:"duration_days"`
	Budget       string `mapstructure:"budget"`
	Location     string `mapstructure:"location"`
	Timezone     string `mapstructure:"timezone"`
	Seed         int64  `mapstructure:"seed"`
	DatasetPath  string `mapstructure:"dataset_path"`
}

func (c MediaPlanConfig) Validate() error {
	if c.DurationDays <= 0 {
		return fmt.Errorf("media_plan.duration_days must be > 0")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("media_plan.timezone: %w", err)
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 300*time.Second)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash-exp")
	v.SetDefault("llm.embedding_model", "text-embedding-004")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.manifest_temperature", 0.3)
	v.SetDefault("llm.manifest_max_tokens", 8192)
	v.SetDefault("image.endpoint", "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-xl-base-1.0")
	v.SetDefault("image.model", "stable-diffusion-xl-base-1.0")
	v.SetDefault("image.inference_steps", 30)
	v.SetDefault("image.loading_wait", 20*time.Second)
	v.SetDefault("image.timeout", 120*time.Second)
	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("moderation.fail_closed", false)
	v.SetDefault("moderation.temperature", 0.1)
	v.SetDefault("retry.linear_delay", 2*time.Second)
	v.SetDefault("retry.exponential_unit", time.Second)
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.data_dir", "storage/campaigns")
	v.SetDefault("storage.assets_dir", "storage/assets")
	v.SetDefault("storage.public_base_url", "/storage/assets")
	v.SetDefault("storage.lock_ttl", time.Minute)
	v.SetDefault("events.stream", "campaign.events")
	v.SetDefault("media_plan.duration_days", 14)
	v.SetDefault("media_plan.budget", "medium")
	v.SetDefault("media_plan.location", "India")
	v.SetDefault("media_plan.timezone", "Asia/Kolkata")
	v.SetDefault("telemetry.service_name", "campaigner")
}

// LoadConfig loads config from file. When path is empty the usual
// locations (./config, ., next to the executable) are searched.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("CAMPAIGNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // CAMPAIGNER_LLM_API_KEY etc.

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Events.Enabled {
		if err := c.Storage.Redis.Validate(); err != nil {
			return fmt.Errorf("events require redis: %w", err)
		}
	}
	return c.MediaPlan.Validate()
}
