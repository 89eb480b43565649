// internal/config/config.go
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/souravmenon1999/ticker-dashboard/internal/types"
)

// EnvPrefix is prepended to every environment override, e.g. DASHBOARD_BYBIT_SYMBOL.
const EnvPrefix = "DASHBOARD"

// Config holds the application configuration.
type Config struct {
	Bybit     BybitConfig     `mapstructure:"bybit"`
	Server    ServerConfig    `mapstructure:"server"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// BybitConfig holds the public stream settings.
type BybitConfig struct {
	WSURL            string        `mapstructure:"ws_url" validate:"required,url"`
	Symbol           string        `mapstructure:"symbol" validate:"required,alphanum,uppercase"`
	PingInterval     time.Duration `mapstructure:"ping_interval" validate:"gte=0"` // 0 disables the heartbeat
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"gt=0"`
}

// ServerConfig holds the dashboard HTTP listener settings.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
}

// DashboardConfig holds presentation settings.
type DashboardConfig struct {
	Title         string        `mapstructure:"title"`
	FlashDuration time.Duration `mapstructure:"flash_duration" validate:"gt=0"`
	DefaultTheme  string        `mapstructure:"default_theme" validate:"oneof=dark light"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bybit.ws_url", "wss://stream.bybit.com/v5/public/linear")
	v.SetDefault("bybit.symbol", "BTCUSDT")
	v.SetDefault("bybit.ping_interval", 20*time.Second)
	v.SetDefault("bybit.handshake_timeout", 10*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 5*time.Second)

	v.SetDefault("dashboard.title", "Bitcoin Dashboard")
	v.SetDefault("dashboard.flash_duration", 600*time.Millisecond)
	v.SetDefault("dashboard.default_theme", "dark")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig reads configuration from a YAML file, then applies environment
// overrides. A missing file is not an error: defaults and env still apply.
// An empty configPath skips the file entirely.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, types.NewConfigError("failed to read config file", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.NewConfigError("failed to unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return types.NewConfigError("invalid config", err)
	}
	return nil
}
