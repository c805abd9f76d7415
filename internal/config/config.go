package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	BrightData BrightDataConfig `yaml:"brightdata" mapstructure:"brightdata"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gather     GatherConfig     `yaml:"gather" mapstructure:"gather"`
	Synthesis  SynthesisConfig  `yaml:"synthesis" mapstructure:"synthesis"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// BrightDataConfig holds Bright Data Web Unlocker credentials. Each source
// fetcher is bound to its own unlocker zone.
type BrightDataConfig struct {
	Token            string  `yaml:"token" mapstructure:"token"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	ProfileZone      string  `yaml:"profile_zone" mapstructure:"profile_zone"`
	ReviewsZone      string  `yaml:"reviews_zone" mapstructure:"reviews_zone"`
	FundingZone      string  `yaml:"funding_zone" mapstructure:"funding_zone"`
	NewsZone         string  `yaml:"news_zone" mapstructure:"news_zone"`
	FetchTimeoutSecs int     `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	FetchRetries     int     `yaml:"fetch_retries" mapstructure:"fetch_retries"`
	RequestsPerSec   float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	ExtractModel   string `yaml:"extract_model" mapstructure:"extract_model"`
	SynthesisModel string `yaml:"synthesis_model" mapstructure:"synthesis_model"`
}

// GatherConfig bounds the concurrent fetch phase.
type GatherConfig struct {
	DeadlineSecs int `yaml:"deadline_secs" mapstructure:"deadline_secs"`
}

// SynthesisConfig bounds the summarization phase.
type SynthesisConfig struct {
	DeadlineSecs    int `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	MaxSentences    int `yaml:"max_sentences" mapstructure:"max_sentences"`
	CacheTTLHours   int `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxOutputTokens int `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REPUTATO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("brightdata.base_url", "https://api.brightdata.com")
	v.SetDefault("brightdata.fetch_timeout_secs", 120)
	v.SetDefault("brightdata.fetch_retries", 1)
	v.SetDefault("brightdata.requests_per_sec", 2.0)
	v.SetDefault("anthropic.extract_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.synthesis_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("gather.deadline_secs", 300)
	v.SetDefault("synthesis.deadline_secs", 180)
	v.SetDefault("synthesis.max_sentences", 5)
	v.SetDefault("synthesis.cache_ttl_hours", 24)
	v.SetDefault("synthesis.max_output_tokens", 1024)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reputato.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that all required credentials are present. Missing
// credentials are a startup-time fatal error, never a per-request one.
func (c *Config) Validate() error {
	var missing []string

	if c.BrightData.Token == "" {
		missing = append(missing, "brightdata.token")
	}
	for key, zone := range map[string]string{
		"brightdata.profile_zone": c.BrightData.ProfileZone,
		"brightdata.reviews_zone": c.BrightData.ReviewsZone,
		"brightdata.funding_zone": c.BrightData.FundingZone,
		"brightdata.news_zone":    c.BrightData.NewsZone,
	} {
		if zone == "" {
			missing = append(missing, key)
		}
	}
	if c.Anthropic.Key == "" {
		missing = append(missing, "anthropic.key")
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
