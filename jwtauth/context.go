package jwtauth

import (
	"context"

	"github.com/Wang-tianhao/coretoken/coretoken"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	requestIDKey
)

// WithClaims attaches verified claims to ctx. Handlers must treat them as
// read-only; use Claims.Payload for a mutable copy.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the claims stored by the middleware, if any
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// MustGetClaims is GetClaims for handlers mounted behind the middleware. It
// panics when no claims are present.
func MustGetClaims(ctx context.Context) *Claims {
	claims, ok := GetClaims(ctx)
	if !ok {
		panic("jwtauth: claims not found in context")
	}
	return claims
}

// ClaimFromContext looks up a single claim of the authenticated token
func ClaimFromContext(ctx context.Context, name string) (coretoken.Value, bool) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return coretoken.Value{}, false
	}
	return claims.Get(name)
}

// WithRequestID stores the correlation ID used in security events
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}
