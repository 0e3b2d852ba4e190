package jwtauth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor returns a gRPC unary server interceptor for token authentication
func UnaryServerInterceptor(cfg *Config) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()

		// Extract metadata
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			requestID := uuid.New().String()
			logAuthFailure(cfg, transportGRPC, requestID, "", NewValidationError(ErrMissingToken, "metadata not found", nil), time.Since(startTime))
			return nil, status.Error(codes.Unauthenticated, "metadata not found")
		}

		// Reuse a caller-supplied request ID for correlation
		requestID := uuid.New().String()
		if ids := md.Get("x-request-id"); len(ids) > 0 && ids[0] != "" {
			requestID = ids[0]
		}

		token, err := extractTokenFromMetadata(md)
		if err != nil {
			logAuthFailure(cfg, transportGRPC, requestID, token, err, time.Since(startTime))
			return nil, status.Error(codes.Unauthenticated, string(CodeOf(err)))
		}

		claims, err := parseAndValidateToken(token, cfg)
		if err != nil {
			logAuthFailure(cfg, transportGRPC, requestID, token, err, time.Since(startTime))
			return nil, status.Error(codes.Unauthenticated, string(CodeOf(err)))
		}

		// Inject claims and request ID into context
		ctx = WithClaims(ctx, claims)
		ctx = WithRequestID(ctx, requestID)

		logAuthSuccess(cfg, transportGRPC, requestID, claims, token, time.Since(startTime))

		return handler(ctx, req)
	}
}
