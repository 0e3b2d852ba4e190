package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the server configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Token  TokenConfig  `mapstructure:"token"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// TokenConfig controls how tokens are issued and verified
type TokenConfig struct {
	Secret    string        `mapstructure:"secret"`
	Algorithm string        `mapstructure:"algorithm"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	TTL       time.Duration `mapstructure:"ttl"`
	MaxTTL    time.Duration `mapstructure:"max_ttl"`
	Skew      time.Duration `mapstructure:"skew"`
}

// LoadConfig reads .env, an optional config file and TOKENSERVER_* variables.
// Nested keys map to variables with "_", e.g. TOKENSERVER_TOKEN_SECRET.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("TOKENSERVER")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("token.secret", "")
	v.SetDefault("token.algorithm", "HS256")
	v.SetDefault("token.issuer", "tokenserver")
	v.SetDefault("token.audience", "")
	v.SetDefault("token.ttl", "15m")
	v.SetDefault("token.max_ttl", "24h")
	v.SetDefault("token.skew", "30s")
}

func (c *Config) validate() error {
	if c.Token.Secret == "" {
		return errors.New("token.secret is required (TOKENSERVER_TOKEN_SECRET)")
	}
	if c.Token.TTL <= 0 {
		return fmt.Errorf("token.ttl must be positive, got %v", c.Token.TTL)
	}
	if c.Token.MaxTTL < c.Token.TTL {
		return fmt.Errorf("token.max_ttl (%v) is shorter than token.ttl (%v)", c.Token.MaxTTL, c.Token.TTL)
	}
	return nil
}
