// Package config loads the command line configuration from flags, TG_*
// environment variables and an optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TG_USERNAME.
const EnvPrefix = "TG"

// Flag names shared by the commands.
const (
	FlagUsername         = "username"
	FlagPassword         = "password"
	FlagVerbosity        = "verbosity"
	FlagBaseURL          = "base-url"
	FlagConfig           = "config"
	FlagRedisURL         = "redis-url"
	FlagMetricsAddr      = "metrics-addr"
	FlagRateLimit        = "rate-limit"
	FlagCloudflareBypass = "cloudflare-bypass"
	FlagLogPretty        = "log-pretty"
)

// Config is the resolved command line configuration.
type Config struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`

	// Verbosity is "", "v" or "vv".
	Verbosity string `mapstructure:"verbosity" validate:"omitempty,oneof=v vv"`

	BaseURL string `mapstructure:"base-url" validate:"required,url"`

	// RedisURL enables batch checkpoints when set.
	RedisURL string `mapstructure:"redis-url" validate:"omitempty,url"`

	// MetricsAddr serves /metrics while the command runs when set.
	MetricsAddr string `mapstructure:"metrics-addr"`

	// RateLimit is a steady request rate per second, 0 for none.
	RateLimit float64 `mapstructure:"rate-limit" validate:"gte=0"`

	CloudflareBypass bool `mapstructure:"cloudflare-bypass"`
	LogPretty        bool `mapstructure:"log-pretty"`
}

// RegisterFlags adds the shared flags to a flag set.
func RegisterFlags(flags *pflag.FlagSet, defaults Config) {
	flags.String(FlagUsername, defaults.Username, "Username/email to sign in with (env TG_USERNAME)")
	flags.String(FlagPassword, defaults.Password, "Password to sign in with (env TG_PASSWORD)")
	flags.StringP(FlagVerbosity, "v", defaults.Verbosity, `Choose different levels of verbosity: "v" or "vv"`)
	flags.String(FlagBaseURL, defaults.BaseURL, "Application base URL")
	flags.String(FlagConfig, "", "Config file (yaml, json or toml)")
	flags.String(FlagRedisURL, defaults.RedisURL, "Redis URL for batch checkpoints, e.g. redis://localhost:6379/0")
	flags.String(FlagMetricsAddr, defaults.MetricsAddr, "Serve Prometheus metrics on this address while running")
	flags.Float64(FlagRateLimit, defaults.RateLimit, "Steady request rate per second, 0 for none")
	flags.Bool(FlagCloudflareBypass, defaults.CloudflareBypass, "Use browser-like TLS settings")
	flags.Bool(FlagLogPretty, defaults.LogPretty, "Human readable structured logs")
}

// Load resolves the configuration. Precedence: flags set on the command
// line, TG_* environment variables, config file, flag defaults.
func Load(v *viper.Viper, flags *pflag.FlagSet) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if file := v.GetString(FlagConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
