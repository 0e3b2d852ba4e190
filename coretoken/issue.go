package coretoken

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type issueConfig struct {
	expiresIn    time.Duration
	hasExpiresIn bool
	notBefore    time.Duration
	hasNotBefore bool
	issuedAt     time.Time
	hasIssuedAt  bool
	issuedAtNow  bool
	keyID        string
	tokenID      string
	subject      string
	issuer       string
	audience     []string
	dialect      Dialect
	rand         io.Reader
	now          func() time.Time
}

// IssueOption customizes Issue
type IssueOption func(*issueConfig)

// ExpiresIn sets exp relative to iat (or the current time when iat is absent)
func ExpiresIn(d time.Duration) IssueOption {
	return func(c *issueConfig) {
		c.expiresIn, c.hasExpiresIn = d, true
	}
}

// NotBeforeIn sets nbf relative to iat (or the current time when iat is absent)
func NotBeforeIn(d time.Duration) IssueOption {
	return func(c *issueConfig) {
		c.notBefore, c.hasNotBefore = d, true
	}
}

// IssuedAt sets the iat claim, replacing any iat in the payload
func IssuedAt(t time.Time) IssueOption {
	return func(c *issueConfig) {
		c.issuedAt, c.hasIssuedAt = t, true
	}
}

// WithIssuedAtNow stamps iat with the issuing clock unless the payload already has one
func WithIssuedAtNow() IssueOption {
	return func(c *issueConfig) {
		c.issuedAtNow = true
	}
}

// WithKeyID writes a kid header so verifiers can select a key
func WithKeyID(kid string) IssueOption {
	return func(c *issueConfig) {
		c.keyID = kid
	}
}

// WithTokenID sets the jti claim. An empty id generates a random UUID.
func WithTokenID(id string) IssueOption {
	return func(c *issueConfig) {
		if id == "" {
			id = uuid.NewString()
		}
		c.tokenID = id
	}
}

func WithSubject(sub string) IssueOption {
	return func(c *issueConfig) {
		c.subject = sub
	}
}

// WithIssuerClaim sets iss
func WithIssuerClaim(iss string) IssueOption {
	return func(c *issueConfig) {
		c.issuer = iss
	}
}

// WithAudienceClaim sets aud; a single audience is written as a string
func WithAudienceClaim(aud ...string) IssueOption {
	return func(c *issueConfig) {
		c.audience = append(c.audience, aud...)
	}
}

// WithDialect selects the header field names (DialectCore by default)
func WithDialect(d Dialect) IssueOption {
	return func(c *issueConfig) {
		c.dialect = d
	}
}

// WithRand sets the randomness source for probabilistic schemes (ES*).
// crypto/rand.Reader is used by default.
func WithRand(r io.Reader) IssueOption {
	return func(c *issueConfig) {
		c.rand = r
	}
}

// WithIssueClock replaces time.Now for iat/exp/nbf computation
func WithIssueClock(now func() time.Time) IssueOption {
	return func(c *issueConfig) {
		c.now = now
	}
}

// Issue encodes claims, signs them with key using alg and returns the token.
// The caller's claims are not modified. Tokens longer than DefaultMaxLength
// are refused so that every issued token can be decoded.
func Issue(claims *Claims, key any, alg Algorithm, opts ...IssueOption) (string, error) {
	cfg := issueConfig{rand: rand.Reader, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, ok := signers[alg]
	if !ok {
		return "", newError(ErrAlgorithmNotAllowed, "algorithm", fmt.Sprintf("unsupported algorithm %q", alg), nil)
	}

	if !utf8.ValidString(cfg.keyID) {
		return "", newError(ErrEncoding, "kid", "key ID is not valid UTF-8", nil)
	}

	payload, err := buildPayload(claims, &cfg)
	if err != nil {
		return "", err
	}

	headerSeg, err := encodeSegment(newHeader(alg, cfg.dialect, cfg.keyID))
	if err != nil {
		return "", newError(ErrEncoding, "header", "header cannot be encoded", err)
	}
	payloadSeg, err := encodeSegment(payload)
	if err != nil {
		return "", newError(ErrEncoding, "payload", "payload cannot be encoded", err)
	}

	var b strings.Builder
	b.Grow(len(headerSeg) + len(payloadSeg) + 2 + segmentEncoding.EncodedLen(64))
	b.WriteString(headerSeg)
	b.WriteString(separator)
	b.WriteString(payloadSeg)

	sig, err := s.sign([]byte(b.String()), key, cfg.rand)
	if err != nil {
		return "", err
	}
	b.WriteString(separator)
	b.WriteString(segmentEncoding.EncodeToString(sig))
	if b.Len() > DefaultMaxLength {
		return "", newError(ErrEncoding, "payload",
			fmt.Sprintf("token would be %d bytes, over the %d byte limit", b.Len(), DefaultMaxLength), nil)
	}
	return b.String(), nil
}

// buildPayload copies claims and applies the registered-claim options.
// An option that would overwrite a claim already in the payload is an error.
func buildPayload(claims *Claims, cfg *issueConfig) (*Claims, error) {
	payload, err := claims.clone(0)
	if err != nil {
		return nil, newError(ErrEncoding, "payload", "claims are cyclic or nested too deeply", err)
	}

	base := cfg.now()
	switch {
	case cfg.hasIssuedAt:
		payload.SetTime(ClaimIssuedAt, cfg.issuedAt)
		base = cfg.issuedAt
	case payload.Has(ClaimIssuedAt) && (cfg.hasExpiresIn || cfg.hasNotBefore):
		iat, _, err := payload.Time(ClaimIssuedAt)
		if err != nil {
			return nil, newError(ErrEncoding, ClaimIssuedAt, err.Error(), nil)
		}
		base = iat
	case payload.Has(ClaimIssuedAt):
	case cfg.issuedAtNow:
		payload.SetTime(ClaimIssuedAt, base)
	}

	if cfg.hasExpiresIn {
		if payload.Has(ClaimExpiresAt) {
			return nil, conflictError(ClaimExpiresAt)
		}
		payload.SetTime(ClaimExpiresAt, base.Add(cfg.expiresIn))
	}
	if cfg.hasNotBefore {
		if payload.Has(ClaimNotBefore) {
			return nil, conflictError(ClaimNotBefore)
		}
		payload.SetTime(ClaimNotBefore, base.Add(cfg.notBefore))
	}

	stringClaims := []struct{ name, value string }{
		{ClaimSubject, cfg.subject},
		{ClaimIssuer, cfg.issuer},
		{ClaimTokenID, cfg.tokenID},
	}
	for _, sc := range stringClaims {
		if sc.value == "" {
			continue
		}
		if payload.Has(sc.name) {
			return nil, conflictError(sc.name)
		}
		payload.Set(sc.name, String(sc.value))
	}

	if len(cfg.audience) > 0 {
		if payload.Has(ClaimAudience) {
			return nil, conflictError(ClaimAudience)
		}
		if len(cfg.audience) == 1 {
			payload.Set(ClaimAudience, String(cfg.audience[0]))
		} else {
			items := make([]Value, len(cfg.audience))
			for i, a := range cfg.audience {
				items[i] = String(a)
			}
			payload.Set(ClaimAudience, Array(items...))
		}
	}
	return payload, nil
}

func conflictError(claim string) *Error {
	return newError(ErrEncoding, claim, "payload already contains this claim", nil)
}
