package coretoken

import (
	"errors"
	"fmt"
	"time"
)

type verifyConfig struct {
	skew          time.Duration
	requireExpiry bool
	skipTime      bool
	issuer        string
	audience      string
	maxLength     int
	now           func() time.Time
}

// VerifyOption customizes Verify
type VerifyOption func(*verifyConfig)

// WithClockSkew tolerates clock differences when checking iat, nbf and exp.
// Negative values are treated as zero.
func WithClockSkew(d time.Duration) VerifyOption {
	return func(c *verifyConfig) {
		if d < 0 {
			d = 0
		}
		c.skew = d
	}
}

// RequireExpiry rejects tokens without an exp claim
func RequireExpiry() VerifyOption {
	return func(c *verifyConfig) {
		c.requireExpiry = true
	}
}

// WithClock replaces time.Now for the time-bound claim checks
func WithClock(now func() time.Time) VerifyOption {
	return func(c *verifyConfig) {
		c.now = now
	}
}

// WithoutTimeValidation skips the iat, nbf and exp checks
func WithoutTimeValidation() VerifyOption {
	return func(c *verifyConfig) {
		c.skipTime = true
	}
}

// WithIssuer requires iss to equal iss
func WithIssuer(iss string) VerifyOption {
	return func(c *verifyConfig) {
		c.issuer = iss
	}
}

// WithAudience requires aud to be, or to contain, aud
func WithAudience(aud string) VerifyOption {
	return func(c *verifyConfig) {
		c.audience = aud
	}
}

// WithMaxLength overrides DefaultMaxLength. Zero disables the limit.
func WithMaxLength(n int) VerifyOption {
	return func(c *verifyConfig) {
		c.maxLength = n
	}
}

// Keyfunc selects the verification key once the header algorithm has passed
// the allow-list. It may use Header.KeyID to pick among several keys.
type Keyfunc func(Header) (any, error)

// StaticKey returns a Keyfunc that always yields key
func StaticKey(key any) Keyfunc {
	return func(Header) (any, error) { return key, nil }
}

// Verify checks token against key and returns its claims. The header's
// algorithm must appear in allowed; None is accepted only when listed.
func Verify(token string, key any, allowed []Algorithm, opts ...VerifyOption) (*Claims, error) {
	return VerifyFunc(token, StaticKey(key), allowed, opts...)
}

// VerifyFunc is Verify with the key chosen per token by keyfunc.
//
// Checks run in a fixed order and stop at the first failure: segment split,
// header decode, algorithm allow-list, signature, claims decode, time-bound
// claims, then issuer and audience.
func VerifyFunc(token string, keyfunc Keyfunc, allowedAlgs []Algorithm, opts ...VerifyOption) (*Claims, error) {
	cfg := verifyConfig{maxLength: DefaultMaxLength, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if keyfunc == nil {
		return nil, newError(ErrInvalidKey, "", "no verification key", nil)
	}

	parts, err := splitToken(token, cfg.maxLength)
	if err != nil {
		return nil, err
	}

	header, err := decodeHeader(parts[0])
	if err != nil {
		return nil, err
	}

	if !allowed(header.Algorithm, allowedAlgs) {
		return nil, newError(ErrAlgorithmNotAllowed, "algorithm",
			fmt.Sprintf("algorithm %q is not allowed", truncate(string(header.Algorithm), 32)), nil)
	}

	key, err := keyfunc(header)
	if err != nil {
		return nil, newError(ErrInvalidKey, "", "verification key lookup failed", err)
	}

	sig, err := decodeBytes(parts[2])
	if err != nil {
		return nil, newError(ErrMalformed, "signature", "signature is not valid base64url", err)
	}
	signingInput := token[:len(parts[0])+1+len(parts[1])]
	if err := signers[header.Algorithm].verify([]byte(signingInput), sig, key); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, e
		}
		return nil, newError(ErrInvalidSignature, "", "signature verification failed", nil)
	}

	claims, err := decodeClaims(parts[1])
	if err != nil {
		return nil, err
	}

	if !cfg.skipTime {
		if err := checkTimes(claims, cfg.now(), cfg.skew, cfg.requireExpiry); err != nil {
			return nil, err
		}
	}
	if err := checkIssuerAudience(claims, cfg.issuer, cfg.audience); err != nil {
		return nil, err
	}
	return claims, nil
}

func checkTimes(claims *Claims, now time.Time, skew time.Duration, requireExpiry bool) error {
	iat, ok, err := claims.Time(ClaimIssuedAt)
	if err != nil {
		return newError(ErrMalformed, ClaimIssuedAt, err.Error(), nil)
	}
	if ok && iat.After(now.Add(skew)) {
		return newError(ErrNotActive, ClaimIssuedAt,
			fmt.Sprintf("token issued in the future at %s, now %s", stamp(iat), stamp(now)), nil)
	}

	nbf, ok, err := claims.Time(ClaimNotBefore)
	if err != nil {
		return newError(ErrMalformed, ClaimNotBefore, err.Error(), nil)
	}
	if ok && nbf.After(now.Add(skew)) {
		return newError(ErrNotActive, ClaimNotBefore,
			fmt.Sprintf("token not active until %s, now %s", stamp(nbf), stamp(now)), nil)
	}

	exp, ok, err := claims.Time(ClaimExpiresAt)
	if err != nil {
		return newError(ErrMalformed, ClaimExpiresAt, err.Error(), nil)
	}
	if !ok {
		if requireExpiry {
			return newError(ErrMissingClaim, ClaimExpiresAt, "token has no expiry", nil)
		}
		return nil
	}
	if !now.Before(exp.Add(skew)) {
		return newError(ErrExpired, ClaimExpiresAt,
			fmt.Sprintf("token expired at %s, now %s", stamp(exp), stamp(now)), nil)
	}
	return nil
}

func checkIssuerAudience(claims *Claims, issuer, audience string) error {
	if issuer != "" && claims.GetString(ClaimIssuer) != issuer {
		return newError(ErrClaimMismatch, ClaimIssuer, "issuer does not match", nil)
	}
	if audience == "" {
		return nil
	}
	aud, _ := claims.Get(ClaimAudience)
	if s, ok := aud.AsString(); ok && s == audience {
		return nil
	}
	if items, ok := aud.AsArray(); ok {
		for _, item := range items {
			if s, ok := item.AsString(); ok && s == audience {
				return nil
			}
		}
	}
	return newError(ErrClaimMismatch, ClaimAudience, "audience does not match", nil)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
