package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Resolver   ResolverConfig   `yaml:"resolver" mapstructure:"resolver"`
	Analyze    AnalyzeConfig    `yaml:"analyze" mapstructure:"analyze"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for transcript analysis.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute float64 `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// ResolverConfig enables the optional hive matching rules.
type ResolverConfig struct {
	ReverseContains   bool    `yaml:"reverse_contains" mapstructure:"reverse_contains"`
	Phonetic          bool    `yaml:"phonetic" mapstructure:"phonetic"`
	PhoneticThreshold float64 `yaml:"phonetic_threshold" mapstructure:"phonetic_threshold"`
}

// AnalyzeConfig configures transcript analysis runs.
type AnalyzeConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port          int      `yaml:"port" mapstructure:"port"`
	WebhookSecret string   `yaml:"webhook_secret" mapstructure:"webhook_secret"`
	CORSOrigins   []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures background health checks and alerting.
type MonitoringConfig struct {
	Enabled             bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	UnresolvedThreshold int    `yaml:"unresolved_threshold" mapstructure:"unresolved_threshold"`
	OverdueDays         int    `yaml:"overdue_days" mapstructure:"overdue_days"`
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
	v.SetEnvPrefix("BEEKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "beekeep.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("anthropic.max_retries", 3)
	v.SetDefault("resolver.reverse_contains", false)
	v.SetDefault("resolver.phonetic", false)
	v.SetDefault("resolver.phonetic_threshold", 0.8)
	v.SetDefault("analyze.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.webhook_secret", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 3600)
	v.SetDefault("monitoring.unresolved_threshold", 10)
	v.SetDefault("monitoring.overdue_days", 14)
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

// Validate checks the settings a command needs. Mode is one of "store",
// "analyze" or "serve"; every mode also validates the store.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for driver "+c.Store.Driver)
		}
	default:
		problems = append(problems, "store.driver must be memory, sqlite or postgres")
	}

	switch mode {
	case "store":
	case "analyze":
		problems = append(problems, c.validateAnalyze()...)
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Monitoring.Enabled && c.Monitoring.CheckIntervalSecs <= 0 {
			problems = append(problems, "monitoring.check_interval_secs must be positive")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if c.Resolver.Phonetic && (c.Resolver.PhoneticThreshold <= 0 || c.Resolver.PhoneticThreshold > 1) {
		problems = append(problems, "resolver.phonetic_threshold must be in (0, 1]")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateAnalyze() []string {
	var problems []string
	if c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required")
	}
	if c.Anthropic.RequestsPerMinute <= 0 {
		problems = append(problems, "anthropic.requests_per_minute must be positive")
	}
	if c.Analyze.Concurrency <= 0 {
		problems = append(problems, "analyze.concurrency must be positive")
	}
	return problems
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
