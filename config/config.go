package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research workflow service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains completion provider settings
type LLMConfig struct {
	APIKey      string           `mapstructure:"api_key"`
	BaseURL     string           `mapstructure:"base_url"`
	Temperature float64          `mapstructure:"temperature"`
	MaxTokens   int              `mapstructure:"max_tokens"`
	Timeout     time.Duration    `mapstructure:"timeout"`
	Routing     LLMRoutingConfig `mapstructure:"routing"`
}

// LLMRoutingConfig defines which model serves each stage
type LLMRoutingConfig struct {
	Planning string `mapstructure:"planning"`
	Research string `mapstructure:"research"`
	Editing  string `mapstructure:"editing"`
	Fallback string `mapstructure:"fallback"`
}

// Model resolves a routing key to a model name, falling back when unset.
func (r LLMRoutingConfig) Model(key string) string {
	m := ""
	switch key {
	case "planning":
		m = r.Planning
	case "research":
		m = r.Research
	case "editing":
		m = r.Editing
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

// SearchConfig contains web search settings
type SearchConfig struct {
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// WatcherConfig bounds the progress watcher that observes fact growth during
// the research stage.
type WatcherConfig struct {
	Window     time.Duration `mapstructure:"window"`
	MaxUpdates int           `mapstructure:"max_updates"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ArchiveConfig contains the optional redis run archive settings
type ArchiveConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Recent   int           `mapstructure:"recent"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("researcher")
		viper.SetConfigType("json")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("RESEARCHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional; defaults plus env cover the common case
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "2m")

	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 4000)
	viper.SetDefault("llm.timeout", "90s")
	viper.SetDefault("llm.routing.planning", "gpt-4o")
	viper.SetDefault("llm.routing.research", "gpt-4o")
	viper.SetDefault("llm.routing.editing", "gpt-4o")
	viper.SetDefault("llm.routing.fallback", "gpt-4o-mini")

	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.timeout", "30s")

	// 15s window mirrors the original 15 one-second polling cycles
	viper.SetDefault("watcher.window", "15s")
	viper.SetDefault("watcher.max_updates", 15)

	viper.SetDefault("server.listen", ":10010")

	viper.SetDefault("telemetry.enabled", true)

	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.host", "localhost")
	viper.SetDefault("archive.port", 6379)
	viper.SetDefault("archive.db", 0)
	viper.SetDefault("archive.ttl", "168h")
	viper.SetDefault("archive.recent", 50)
}

// overrideFromEnv overrides configuration with environment variables for
// sensitive data
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("llm.api_key", apiKey)
	}
	if apiKey := os.Getenv("BRAVE_SEARCH_KEY"); apiKey != "" {
		viper.Set("search.brave_api_key", apiKey)
	}
	if apiKey := os.Getenv("SERPER_API_KEY"); apiKey != "" {
		viper.Set("search.serper_api_key", apiKey)
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		viper.Set("server.jwt_secret", secret)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("archive.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("archive.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		viper.Set("archive.password", password)
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if strings.TrimSpace(config.LLM.APIKey) == "" {
		return fmt.Errorf("llm api key must be configured (set OPENAI_API_KEY)")
	}
	if config.Watcher.Window <= 0 {
		return fmt.Errorf("watcher window must be positive")
	}
	return nil
}
