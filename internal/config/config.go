package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// LLMConfig holds generator API settings.
type LLMConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Model             string  `yaml:"model" mapstructure:"model"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// PipelineConfig configures planning and the repair loop.
type PipelineConfig struct {
	// ReferenceDate anchors relative date phrases, ISO format. Empty means
	// the current day.
	ReferenceDate string  `yaml:"reference_date" mapstructure:"reference_date"`
	MaxRepairs    int     `yaml:"max_repairs" mapstructure:"max_repairs"`
	PlanTemp      float64 `yaml:"plan_temperature" mapstructure:"plan_temperature"`
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("BANKQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "bankquery.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.requests_per_second", 2)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("pipeline.reference_date", "2025-01-28")
	v.SetDefault("pipeline.max_repairs", 2)
	v.SetDefault("pipeline.plan_temperature", 0.1)
	v.SetDefault("pipeline.max_concurrent", 4)

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

// Validate checks the fields the given mode depends on. Modes are command
// names: "ask", "serve", "runs".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkCommon := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
		if c.Store.Driver == "sqlite" && c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
		if c.Pipeline.MaxRepairs < 0 || c.Pipeline.MaxRepairs > 5 {
			problems = append(problems, "pipeline.max_repairs must be between 0 and 5")
		}
		if c.Pipeline.MaxConcurrent < 1 || c.Pipeline.MaxConcurrent > 32 {
			problems = append(problems, "pipeline.max_concurrent must be between 1 and 32")
		}
		if c.Pipeline.ReferenceDate != "" {
			if _, err := time.Parse("2006-01-02", c.Pipeline.ReferenceDate); err != nil {
				problems = append(problems, "pipeline.reference_date must be YYYY-MM-DD")
			}
		}
	}

	switch mode {
	case "ask":
		checkCommon()
		if c.LLM.Key == "" {
			problems = append(problems, "llm.key is required")
		}
	case "serve":
		checkCommon()
		if c.LLM.Key == "" {
			problems = append(problems, "llm.key is required")
		}
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "runs":
		checkCommon()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
