package jwtauth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Middleware returns net/http middleware for token authentication. It works
// with any router built on http.Handler, such as gorilla/mux.
func Middleware(cfg *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			token, err := extractToken(r, cfg)
			if err == nil {
				var claims *Claims
				claims, err = parseAndValidateToken(token, cfg)
				if err == nil {
					ctx := WithClaims(r.Context(), claims)
					ctx = WithRequestID(ctx, requestID)
					logAuthSuccess(cfg, transportHTTP, requestID, claims, token, time.Since(startTime))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			logAuthFailure(cfg, transportHTTP, requestID, token, err, time.Since(startTime))
			writeUnauthorized(w, err)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(buildErrorResponse(err))
}
