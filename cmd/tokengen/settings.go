package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Wang-tianhao/coretoken/coretoken"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// settings are the defaults shared by every subcommand. Flags override them.
type settings struct {
	Secret    string        `mapstructure:"secret"`
	KeyFile   string        `mapstructure:"key_file"`
	Algorithm string        `mapstructure:"algorithm"`
	Dialect   string        `mapstructure:"dialect"`
	Expiry    time.Duration `mapstructure:"expiry"`
	Skew      time.Duration `mapstructure:"skew"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
}

// loadSettings reads .env, an optional config file and TOKENGEN_* variables
func loadSettings(configPath string) (*settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("TOKENGEN")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("secret", "")
	v.SetDefault("key_file", "")
	v.SetDefault("algorithm", string(coretoken.HS256))
	v.SetDefault("dialect", "core")
	v.SetDefault("expiry", "0s")
	v.SetDefault("skew", "0s")
	v.SetDefault("issuer", "")
	v.SetDefault("audience", "")
}

// signingKey loads the key Issue needs for alg
func (s *settings) signingKey(alg coretoken.Algorithm) (any, error) {
	if alg == coretoken.None {
		return nil, nil
	}
	if alg.Symmetric() {
		return s.secret()
	}
	data, err := s.readKeyFile()
	if err != nil {
		return nil, err
	}
	return coretoken.ParsePrivateKeyPEM(data)
}

// verificationKey loads a public key, or a private key whose public half is used
func (s *settings) verificationKey(alg coretoken.Algorithm) (any, error) {
	if alg == coretoken.None {
		return nil, nil
	}
	if alg.Symmetric() {
		return s.secret()
	}
	data, err := s.readKeyFile()
	if err != nil {
		return nil, err
	}
	if key, err := coretoken.ParsePublicKeyPEM(data); err == nil {
		return key, nil
	}
	return coretoken.ParsePrivateKeyPEM(data)
}

func (s *settings) secret() (any, error) {
	if s.Secret == "" {
		return nil, errors.New("a secret is required (-secret or TOKENGEN_SECRET)")
	}
	return coretoken.Secret(s.Secret), nil
}

func (s *settings) readKeyFile() ([]byte, error) {
	if s.KeyFile == "" {
		return nil, errors.New("a PEM key file is required (-key-file or TOKENGEN_KEY_FILE)")
	}
	data, err := os.ReadFile(s.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("error reading key file: %w", err)
	}
	return data, nil
}
