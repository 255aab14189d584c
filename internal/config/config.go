// Package config loads server configuration from the environment, with a
// local .env picked up for development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort     string `mapstructure:"APP_PORT"`
	StoreDir    string `mapstructure:"STORE_DIR"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	AssistBaseURL string `mapstructure:"ASSIST_BASE_URL"`

	HistoryTTLMinutes int    `mapstructure:"HISTORY_TTL_MINUTES"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
}

// LoadFromEnv reads the configuration. DATABASE_URL is required; everything
// else has a workable default.
func LoadFromEnv() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	keys := []string{
		"APP_PORT", "STORE_DIR", "DATABASE_URL",
		"REDIS_ADDR", "ASSIST_BASE_URL",
		"HISTORY_TTL_MINUTES", "LOG_LEVEL",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	v.SetDefault("APP_PORT", "8081")
	v.SetDefault("STORE_DIR", "store")
	v.SetDefault("HISTORY_TTL_MINUTES", 60)
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return &cfg, nil
}

// HistoryTTL returns the conversation expiry as a duration.
func (c *Config) HistoryTTL() time.Duration {
	return time.Duration(c.HistoryTTLMinutes) * time.Minute
}
