package jwtauth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Wang-tianhao/coretoken/coretoken"
)

// maxReportedHeaderLength caps how much of an attacker-chosen header value is echoed back
const maxReportedHeaderLength = 32

// parseAndValidateToken verifies a token with the engine and converts its payload
func parseAndValidateToken(tokenString string, cfg *Config) (*Claims, error) {
	opts := []coretoken.VerifyOption{coretoken.WithClockSkew(cfg.ClockSkewLeeway())}
	if cfg.Issuer() != "" {
		opts = append(opts, coretoken.WithIssuer(cfg.Issuer()))
	}
	if cfg.Audience() != "" {
		opts = append(opts, coretoken.WithAudience(cfg.Audience()))
	}

	payload, err := coretoken.VerifyFunc(tokenString, cfg.keyfunc, cfg.allowedAlgorithms(), opts...)
	if err != nil {
		return nil, translateError(tokenString, err, cfg)
	}

	if err := validateRequiredClaims(payload, cfg); err != nil {
		return nil, err
	}

	return newClaims(payload), nil
}

// keyfunc selects the configured key for the header algorithm
func (c *Config) keyfunc(h coretoken.Header) (any, error) {
	key, ok := c.keyFor(h.Algorithm)
	if !ok {
		return nil, fmt.Errorf("no key configured for %s", h.Algorithm)
	}
	return key, nil
}

// translateError maps an engine failure onto a middleware reason code. The
// engine error stays reachable through Unwrap and its Field is carried over.
func translateError(tokenString string, err error, cfg *Config) error {
	var engErr *coretoken.Error
	if !errors.As(err, &engErr) {
		return NewValidationError(ErrMalformed, "malformed token", err)
	}

	code, ok := engineReasons[engErr.Code]
	if !ok {
		code = ErrMalformed
	}
	message := engErr.Message

	switch engErr.Code {
	case coretoken.ErrAlgorithmNotAllowed:
		alg := ""
		if h, herr := coretoken.PeekHeader(tokenString); herr == nil {
			alg = string(h.Algorithm)
		}
		if strings.EqualFold(alg, string(coretoken.None)) {
			code, message = ErrNoneAlgorithm, "none algorithm not allowed"
		} else {
			message = fmt.Sprintf("algorithm %s not supported (available: %s)",
				truncateHeaderValue(alg), strings.Join(cfg.AvailableAlgorithms(), ", "))
		}
	case coretoken.ErrMalformed:
		if engErr.Field == "algorithm" {
			code = ErrMalformedAlgorithmHeader
		}
	case coretoken.ErrInvalidSignature, coretoken.ErrInvalidKey:
		message = "signature verification failed"
	}

	valErr := NewValidationError(code, message, err)
	valErr.Field = engErr.Field
	return valErr
}

func truncateHeaderValue(v string) string {
	if len(v) <= maxReportedHeaderLength {
		return v
	}
	return v[:maxReportedHeaderLength] + "..."
}

// validateRequiredClaims ensures all required claims are present
func validateRequiredClaims(payload *coretoken.Claims, cfg *Config) error {
	for _, claimName := range cfg.RequiredClaims() {
		if !payload.Has(claimName) {
			valErr := NewValidationError(ErrMalformed, fmt.Sprintf("required claim missing: %s", claimName), nil)
			valErr.Field = claimName
			return valErr
		}
	}
	return nil
}
