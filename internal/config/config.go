// Package config loads application configuration from config.yaml and
// CRMSW_-prefixed environment variables, and initializes the global logger.
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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	CurrentRMS CurrentRMSConfig `yaml:"current_rms" mapstructure:"current_rms"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Webhook    WebhookConfig    `yaml:"webhook" mapstructure:"webhook"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Settings   SettingsConfig   `yaml:"settings" mapstructure:"settings"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// CurrentRMSConfig holds Current RMS API credentials.
type CurrentRMSConfig struct {
	Subdomain string  `yaml:"subdomain" mapstructure:"subdomain"`
	Token     string  `yaml:"token" mapstructure:"token"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// WebhookConfig configures inbound webhook handling.
type WebhookConfig struct {
	// Secret, when set, must match the X-Webhook-Secret header on every
	// delivery. Empty disables the check.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// TargetURL is the public URL registered with Current RMS.
	TargetURL string `yaml:"target_url" mapstructure:"target_url"`
}

// SyncConfig configures the backfill sync command.
type SyncConfig struct {
	PageSize    int `yaml:"page_size" mapstructure:"page_size"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	WindowDays  int `yaml:"window_days" mapstructure:"window_days"`
}

// SettingsConfig configures the risk settings cache.
type SettingsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
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
	v.SetEnvPrefix("CRMSW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "watcher.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("current_rms.subdomain", "")
	v.SetDefault("current_rms.token", "")
	v.SetDefault("current_rms.base_url", "https://api.current-rms.com/api/v1")
	v.SetDefault("current_rms.rate_limit", 1.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("sync.window_days", 365)
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.target_url", "")
	v.SetDefault("settings.cache_ttl", 5*time.Minute)
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
