package config

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultPort = "8585"

type Config struct {
	Port            string        `mapstructure:"PORT"`
	DBPath          string        `mapstructure:"DB_PATH"`
	StoreTimeout    time.Duration `mapstructure:"STORE_TIMEOUT"`
	AllowedOrigins  string        `mapstructure:"ALLOWED_ORIGINS"`
	OrderRateLimit  int           `mapstructure:"ORDER_RATE_LIMIT"`
	OrderRateWindow time.Duration `mapstructure:"ORDER_RATE_WINDOW"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	LogFormat       string        `mapstructure:"LOG_FORMAT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// LoadConfig reads app.env from path if present, then lets environment variables
// override it. Every key has a default so the service starts with no configuration.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetDefault("PORT", defaultPort)
	v.SetDefault("DB_PATH", "./coursehub.db")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("ORDER_RATE_LIMIT", 10)
	v.SetDefault("ORDER_RATE_WINDOW", "1m")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Make sure port is valid
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT. Falling back to default.", "PORT", cfg.Port)
		cfg.Port = defaultPort
	}

	return cfg, nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean debug.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
