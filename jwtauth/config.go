package jwtauth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Wang-tianhao/coretoken/coretoken"
	"github.com/prometheus/client_golang/prometheus"
)

// minHMACSecretLength is the shortest accepted HS* secret (256 bits)
const minHMACSecretLength = 32

// Config holds immutable configuration for token validation
type Config struct {
	keys            map[coretoken.Algorithm]any // "HS256" -> []byte, "RS256" -> *rsa.PublicKey, ...
	clockSkewLeeway time.Duration
	cookieName      string
	requiredClaims  []string
	issuer          string
	audience        string
	logger          *slog.Logger
	metrics         *metrics
}

// ConfigOption is a functional option for configuring the middleware
type ConfigOption func(*Config) error

// NewConfig creates a new immutable configuration with the given options
func NewConfig(opts ...ConfigOption) (*Config, error) {
	cfg := &Config{
		keys:            make(map[coretoken.Algorithm]any),
		clockSkewLeeway: 60 * time.Second, // Default 60 seconds
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, NewValidationError(ErrConfigError, fmt.Sprintf("configuration error: %v", err), err)
		}
	}

	if len(cfg.keys) == 0 {
		return nil, NewValidationError(ErrConfigError, "at least one algorithm must be configured (use WithHS256, WithRS256, WithES256 or WithEdDSA)", nil)
	}

	for alg, key := range cfg.keys {
		if strings.EqualFold(string(alg), string(coretoken.None)) {
			return nil, NewValidationError(ErrConfigError, "none algorithm is prohibited", nil)
		}
		if key == nil {
			return nil, NewValidationError(ErrConfigError, fmt.Sprintf("verification key for %s cannot be nil", alg), nil)
		}
	}

	return cfg, nil
}

func withHMAC(alg coretoken.Algorithm, secret []byte) ConfigOption {
	return func(c *Config) error {
		if len(secret) < minHMACSecretLength {
			return fmt.Errorf("%s secret must be at least %d bytes (256 bits), got %d bytes", alg, minHMACSecretLength, len(secret))
		}
		c.keys[alg] = append([]byte(nil), secret...)
		return nil
	}
}

// WithHS256 configures HMAC-SHA256 validation with the given secret
func WithHS256(secret []byte) ConfigOption { return withHMAC(coretoken.HS256, secret) }

// WithHS384 configures HMAC-SHA384 validation with the given secret
func WithHS384(secret []byte) ConfigOption { return withHMAC(coretoken.HS384, secret) }

// WithHS512 configures HMAC-SHA512 validation with the given secret
func WithHS512(secret []byte) ConfigOption { return withHMAC(coretoken.HS512, secret) }

// WithRS256 configures RSA-SHA256 validation with the given public key
func WithRS256(publicKey *rsa.PublicKey) ConfigOption {
	return func(c *Config) error {
		if publicKey == nil {
			return fmt.Errorf("RS256 public key cannot be nil")
		}
		c.keys[coretoken.RS256] = publicKey
		return nil
	}
}

// WithES256 configures ECDSA P-256 validation with the given public key
func WithES256(publicKey *ecdsa.PublicKey) ConfigOption {
	return func(c *Config) error {
		if publicKey == nil {
			return fmt.Errorf("ES256 public key cannot be nil")
		}
		if publicKey.Curve == nil || publicKey.X == nil || publicKey.Y == nil {
			return fmt.Errorf("ES256 public key is incomplete")
		}
		if publicKey.Curve != elliptic.P256() {
			return fmt.Errorf("ES256 requires a P-256 key, got %s", publicKey.Curve.Params().Name)
		}
		c.keys[coretoken.ES256] = publicKey
		return nil
	}
}

// WithEdDSA configures Ed25519 validation with the given public key
func WithEdDSA(publicKey ed25519.PublicKey) ConfigOption {
	return func(c *Config) error {
		if len(publicKey) != ed25519.PublicKeySize {
			return fmt.Errorf("EdDSA public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey))
		}
		c.keys[coretoken.EdDSA] = publicKey
		return nil
	}
}

// WithClockSkew sets the clock skew tolerance for iat/nbf/exp validation
func WithClockSkew(skew time.Duration) ConfigOption {
	return func(c *Config) error {
		if skew < 0 {
			return fmt.Errorf("clock skew must be non-negative, got %v", skew)
		}
		c.clockSkewLeeway = skew
		return nil
	}
}

// WithCookie enables token extraction from a cookie with the given name
func WithCookie(cookieName string) ConfigOption {
	return func(c *Config) error {
		c.cookieName = cookieName
		return nil
	}
}

// WithLogger sets a structured logger for security events
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// WithRequiredClaims specifies claim names that must be present in the token
func WithRequiredClaims(claims ...string) ConfigOption {
	return func(c *Config) error {
		c.requiredClaims = append(c.requiredClaims, claims...)
		return nil
	}
}

// WithIssuer rejects tokens whose iss claim differs from issuer
func WithIssuer(issuer string) ConfigOption {
	return func(c *Config) error {
		c.issuer = issuer
		return nil
	}
}

// WithAudience rejects tokens whose aud claim does not name audience
func WithAudience(audience string) ConfigOption {
	return func(c *Config) error {
		c.audience = audience
		return nil
	}
}

// WithMetrics registers validation counters and latency histograms with reg
func WithMetrics(reg prometheus.Registerer) ConfigOption {
	return func(c *Config) error {
		if reg == nil {
			return fmt.Errorf("metrics registerer cannot be nil")
		}
		m, err := newMetrics(reg)
		if err != nil {
			return err
		}
		c.metrics = m
		return nil
	}
}

// AvailableAlgorithms returns a sorted list of configured algorithm names
func (c *Config) AvailableAlgorithms() []string {
	algs := make([]string, 0, len(c.keys))
	for alg := range c.keys {
		algs = append(algs, string(alg))
	}
	sort.Strings(algs)
	return algs
}

// allowedAlgorithms is the engine allow-list derived from the configured keys
func (c *Config) allowedAlgorithms() []coretoken.Algorithm {
	algs := make([]coretoken.Algorithm, 0, len(c.keys))
	for alg := range c.keys {
		algs = append(algs, alg)
	}
	return algs
}

// keyFor retrieves the verification key for a given algorithm
func (c *Config) keyFor(alg coretoken.Algorithm) (any, bool) {
	key, exists := c.keys[alg]
	return key, exists
}

func (c *Config) ClockSkewLeeway() time.Duration {
	return c.clockSkewLeeway
}

func (c *Config) CookieName() string {
	return c.cookieName
}

func (c *Config) RequiredClaims() []string {
	return c.requiredClaims
}

func (c *Config) Issuer() string {
	return c.issuer
}

func (c *Config) Audience() string {
	return c.audience
}

func (c *Config) Logger() *slog.Logger {
	return c.logger
}
