package jwtauth

import (
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

const bearerScheme = "bearer"

// bearerToken returns the credential of a "Bearer <token>" value. source
// names where the value came from in error messages.
func bearerToken(value, source string) (string, error) {
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", NewValidationError(ErrMalformed, "invalid "+source+" format, expected 'Bearer <token>'", nil)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", NewValidationError(ErrMissingToken, "token is empty", nil)
	}
	return token, nil
}

// extractTokenFromHeader reads "Authorization: Bearer <token>"
func extractTokenFromHeader(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", NewValidationError(ErrMissingToken, "authorization header not found", nil)
	}
	return bearerToken(authHeader, "authorization header")
}

func extractTokenFromCookie(r *http.Request, cookieName string) (string, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return "", NewValidationError(ErrMissingToken, "cookie not found", err)
	}

	token := strings.TrimSpace(cookie.Value)
	if token == "" {
		return "", NewValidationError(ErrMissingToken, "cookie value is empty", nil)
	}
	return token, nil
}

// extractToken checks the Authorization header first, then the cookie if
// one is configured. The header error is reported when both fail.
func extractToken(r *http.Request, cfg *Config) (string, error) {
	token, err := extractTokenFromHeader(r)
	if err == nil {
		return token, nil
	}

	if cfg.CookieName() != "" {
		if token, cookieErr := extractTokenFromCookie(r, cfg.CookieName()); cookieErr == nil {
			return token, nil
		}
	}
	return "", err
}

// extractTokenFromMetadata reads the first "authorization" metadata value
func extractTokenFromMetadata(md metadata.MD) (string, error) {
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", NewValidationError(ErrMissingToken, "authorization metadata not found", nil)
	}
	return bearerToken(values[0], "authorization")
}
