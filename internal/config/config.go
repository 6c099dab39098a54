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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ExtractConfig configures record extraction.
type ExtractConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
	// BatchSize is the number of records written per store call.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	// TaxonomyPath overrides the embedded concept taxonomy when set.
	TaxonomyPath string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
	Currency     string `yaml:"currency" mapstructure:"currency"`
	TempDir      string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// FetchConfig configures bulk archive downloads.
type FetchConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetryConfig configures retries of transient store errors.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the read API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DIGIACCOUNTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one so AutomaticEnv can bind it on Unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "digiaccounts.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("extract.workers", 4)
	v.SetDefault("extract.batch_size", 200)
	v.SetDefault("extract.taxonomy_path", "")
	v.SetDefault("extract.currency", "GBP")
	v.SetDefault("extract.temp_dir", "/tmp/digiaccounts")
	v.SetDefault("fetch.base_url", "https://download.companieshouse.gov.uk")
	v.SetDefault("fetch.user_agent", "digiaccounts/1.0")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

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

// Validate checks the settings needed by the named command mode: extract,
// fetch, watch, serve, export or migrate.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	switch mode {
	case "extract", "watch":
		errs = append(errs, c.validateExtract()...)
	case "fetch":
		errs = append(errs, c.validateExtract()...)
		if c.Fetch.BaseURL == "" {
			errs = append(errs, "fetch.base_url is required")
		}
		if c.Fetch.TimeoutSecs <= 0 {
			errs = append(errs, "fetch.timeout_secs must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "export", "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateExtract() []string {
	var errs []string
	if c.Extract.Workers < 1 || c.Extract.Workers > 64 {
		errs = append(errs, "extract.workers must be between 1 and 64")
	}
	if c.Extract.BatchSize < 1 || c.Extract.BatchSize > 10000 {
		errs = append(errs, "extract.batch_size must be between 1 and 10000")
	}
	if len(c.Extract.Currency) != 3 {
		errs = append(errs, "extract.currency must be an ISO 4217 code")
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, "retry.max_attempts must be >= 0")
	}
	return errs
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
