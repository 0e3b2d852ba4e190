package jwtauth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Transport labels used in logs and metrics
const (
	transportGin  = "gin"
	transportHTTP = "http"
	transportGRPC = "grpc"
)

// JWTAuth returns a Gin middleware handler for token authentication
func JWTAuth(cfg *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Generate or extract request ID for correlation
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Extract token from request
		token, err := extractToken(c.Request, cfg)
		if err != nil {
			logAuthFailure(cfg, transportGin, requestID, token, err, time.Since(startTime))
			c.AbortWithStatusJSON(401, buildErrorResponse(err))
			return
		}

		// Validate token
		claims, err := parseAndValidateToken(token, cfg)
		if err != nil {
			logAuthFailure(cfg, transportGin, requestID, token, err, time.Since(startTime))
			c.AbortWithStatusJSON(401, buildErrorResponse(err))
			return
		}

		// Inject claims and request ID into context
		ctx := WithClaims(c.Request.Context(), claims)
		ctx = WithRequestID(ctx, requestID)
		c.Request = c.Request.WithContext(ctx)

		logAuthSuccess(cfg, transportGin, requestID, claims, token, time.Since(startTime))

		c.Next()
	}
}

// logAuthSuccess records a successful authentication event
func logAuthSuccess(cfg *Config, transport, requestID string, claims *Claims, token string, latency time.Duration) {
	cfg.metrics.observe(transport, nil, latency)
	if cfg.Logger() == nil {
		return
	}

	event := newSecurityEvent(outcomeSuccess, transport, requestID, token, latency)
	event.Subject = claims.Subject
	event.TokenID = claims.TokenID
	logSecurityEvent(cfg.Logger(), event)
}

// logAuthFailure records a failed authentication event
func logAuthFailure(cfg *Config, transport, requestID string, token string, err error, latency time.Duration) {
	cfg.metrics.observe(transport, err, latency)
	if cfg.Logger() == nil {
		return
	}

	event := newSecurityEvent(outcomeFailure, transport, requestID, token, latency)
	event.Reason = CodeOf(err)
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		event.Field = valErr.Field
	}
	logSecurityEvent(cfg.Logger(), event)
}

// buildErrorResponse constructs the 401 body. Algorithm failures carry a
// message listing what is accepted; nothing else is echoed to the client.
func buildErrorResponse(err error) gin.H {
	response := gin.H{
		"error":  "unauthorized",
		"reason": string(CodeOf(err)),
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) && valErr.Message != "" {
		if valErr.Code == ErrUnsupportedAlgorithm || valErr.Code == ErrMalformedAlgorithmHeader {
			response["message"] = valErr.Message
		}
	}
	return response
}
