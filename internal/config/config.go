// Package config handles configuration loading for ThesisAI.
// It supports YAML config files, an optional .env file and environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"      json:"llm"`
	News     NewsConfig     `mapstructure:"news"     yaml:"news"     json:"news"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis" json:"analysis"`
	Cache    CacheConfig    `mapstructure:"cache"    yaml:"cache"    json:"cache"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"      json:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"  json:"logging"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary         string  `mapstructure:"primary"          yaml:"primary"          json:"primary"          validate:"oneof=openai ollama gemini anthropic"`
	OpenAIKey       string  `mapstructure:"openai_key"       yaml:"openai_key"       json:"-"`
	OpenAIBaseURL   string  `mapstructure:"openai_base_url"  yaml:"openai_base_url"  json:"openai_base_url"  validate:"omitempty,url"`
	OllamaURL       string  `mapstructure:"ollama_url"       yaml:"ollama_url"       json:"ollama_url"       validate:"omitempty,url"`
	GeminiKey       string  `mapstructure:"gemini_key"       yaml:"gemini_key"       json:"-"`
	AnthropicKey    string  `mapstructure:"anthropic_key"    yaml:"anthropic_key"    json:"-"`
	Model           string  `mapstructure:"model"            yaml:"model"            json:"model"            validate:"required"`
	ExtractionModel string  `mapstructure:"extraction_model" yaml:"extraction_model" json:"extraction_model"` // entity resolution; defaults to Model
	Fallbacks       bool    `mapstructure:"fallbacks"        yaml:"fallbacks"        json:"fallbacks"`        // fall back to other configured providers
	Temperature     float64 `mapstructure:"temperature"      yaml:"temperature"      json:"temperature"      validate:"gte=0,lte=2"`
	MaxTokens       int     `mapstructure:"max_tokens"       yaml:"max_tokens"       json:"max_tokens"       validate:"gt=0"`
	TimeoutSec      int     `mapstructure:"timeout_sec"      yaml:"timeout_sec"      json:"timeout_sec"      validate:"gt=0"`
	MaxRetries      int     `mapstructure:"max_retries"      yaml:"max_retries"      json:"max_retries"      validate:"gte=0,lte=5"`
}

// NewsConfig selects and configures the news search provider.
type NewsConfig struct {
	Provider   string `mapstructure:"provider"    yaml:"provider"    json:"provider"    validate:"oneof=auto serpapi finnhub rss"`
	SerpAPIKey string `mapstructure:"serpapi_key" yaml:"serpapi_key" json:"-"`
	FinnhubKey string `mapstructure:"finnhub_key" yaml:"finnhub_key" json:"-"`
	Limit      int    `mapstructure:"limit"       yaml:"limit"       json:"limit"       validate:"gte=0"`
	Language   string `mapstructure:"language"    yaml:"language"    json:"language"`
	Country    string `mapstructure:"country"     yaml:"country"     json:"country"`
}

// AnalysisConfig holds pipeline settings.
type AnalysisConfig struct {
	ContextCap       int    `mapstructure:"context_cap"        yaml:"context_cap"        json:"context_cap"        validate:"gte=1000"` // characters
	DefaultPeriod    string `mapstructure:"default_period"     yaml:"default_period"     json:"default_period"`
	FetchTimeoutSec  int    `mapstructure:"fetch_timeout_sec"  yaml:"fetch_timeout_sec"  json:"fetch_timeout_sec"  validate:"gt=0"`
	PartialResults   bool   `mapstructure:"partial_results"    yaml:"partial_results"    json:"partial_results"`
	MaxFetchRetries  int    `mapstructure:"max_fetch_retries"  yaml:"max_fetch_retries"  json:"max_fetch_retries"  validate:"gte=0,lte=5"`
	OutputFormat     string `mapstructure:"output_format"      yaml:"output_format"      json:"output_format"      validate:"oneof=html markdown"`
	IncludeSentiment bool   `mapstructure:"include_sentiment"  yaml:"include_sentiment"  json:"include_sentiment"`
}

// CacheConfig holds the fetch cache settings.
type CacheConfig struct {
	Backend  string `mapstructure:"backend"   yaml:"backend"   json:"backend"   validate:"oneof=memory redis none"`
	TTLSec   int    `mapstructure:"ttl_sec"   yaml:"ttl_sec"   json:"ttl_sec"   validate:"gte=0"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url" json:"-"         validate:"required_if=Backend redis"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"         validate:"gt=0,lte=65535"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"  validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" json:"format" validate:"oneof=text json"`
}

// LLMTimeout returns the per-call LLM timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSec) * time.Second
}

// FetchTimeout returns the timeout for the whole fetch stage.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Analysis.FetchTimeoutSec) * time.Second
}

// CacheTTL returns the fetch cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.thesisai/config.yaml (home directory)
//  3. /etc/thesisai/config.yaml (system)
//
// A .env file in the working directory is loaded first when present.
// Environment variables override config file values.
// Format: THESISAI_<SECTION>_<KEY>, e.g., THESISAI_LLM_OPENAI_KEY
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".thesisai"))
	v.AddConfigPath("/etc/thesisai")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("THESISAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if cfg.LLM.ExtractionModel == "" {
		cfg.LLM.ExtractionModel = cfg.LLM.Model
	}
	return &cfg, nil
}

// loadDotEnv loads KEY=value pairs from path without overriding variables
// already present in the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error reading %s: %w", path, err)
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.ollama_url", "")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.extraction_model", "")
	v.SetDefault("llm.fallbacks", true)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout_sec", 120)
	v.SetDefault("llm.max_retries", 2)

	// News defaults
	v.SetDefault("news.provider", "auto")
	v.SetDefault("news.limit", 10)
	v.SetDefault("news.language", "en")
	v.SetDefault("news.country", "US")

	// Analysis defaults
	v.SetDefault("analysis.context_cap", 14000)
	v.SetDefault("analysis.default_period", "1y")
	v.SetDefault("analysis.fetch_timeout_sec", 45)
	v.SetDefault("analysis.partial_results", false)
	v.SetDefault("analysis.max_fetch_retries", 0)
	v.SetDefault("analysis.output_format", "html")
	v.SetDefault("analysis.include_sentiment", true)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_sec", 300) // 5 minutes

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// secret describes one sensitive value: the prefixed variable first, then
// the conventional vendor variables used as fallbacks.
type secret struct {
	vars []string
	ptr  func(*Config) *string
}

var secrets = []secret{
	{[]string{"THESISAI_LLM_OPENAI_KEY", "OPENAI_API_KEY"}, func(c *Config) *string { return &c.LLM.OpenAIKey }},
	{[]string{"THESISAI_LLM_GEMINI_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"}, func(c *Config) *string { return &c.LLM.GeminiKey }},
	{[]string{"THESISAI_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"}, func(c *Config) *string { return &c.LLM.AnthropicKey }},
	{[]string{"THESISAI_NEWS_SERPAPI_KEY", "SERPAPI_API_KEY"}, func(c *Config) *string { return &c.News.SerpAPIKey }},
	{[]string{"THESISAI_NEWS_FINNHUB_KEY", "FINNHUB_API_KEY"}, func(c *Config) *string { return &c.News.FinnhubKey }},
	{[]string{"THESISAI_CACHE_REDIS_URL", "REDIS_URL"}, func(c *Config) *string { return &c.Cache.RedisURL }},
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// Vendor variables only fill values that are still empty.
func overrideFromEnv(cfg *Config) {
	for _, s := range secrets {
		dst := s.ptr(cfg)
		if v := os.Getenv(s.vars[0]); v != "" {
			*dst = v
			continue
		}
		if *dst != "" {
			continue
		}
		for _, name := range s.vars[1:] {
			if v := os.Getenv(name); v != "" {
				*dst = v
				break
			}
		}
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
