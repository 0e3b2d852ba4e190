package jwtauth

import (
	"log/slog"
	"time"

	"github.com/Wang-tianhao/coretoken/coretoken"
)

// Security event outcomes
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// SecurityEvent is one authentication decision. Token is redacted when the
// event is logged; the other fields are written as-is and empty ones are
// left out.
type SecurityEvent struct {
	Outcome   string
	Transport string
	Timestamp time.Time
	RequestID string
	Subject   string // empty on failure
	TokenID   string
	Algorithm string // from the unverified header on failure
	KeyID     string
	Reason    ErrorCode
	Field     string // header member or claim that caused the failure
	Token     string
	Latency   time.Duration
}

// newSecurityEvent fills the header-derived fields from the raw token.
// The header is read without verification and only for reporting.
func newSecurityEvent(outcome, transport, requestID, token string, latency time.Duration) SecurityEvent {
	event := SecurityEvent{
		Outcome:   outcome,
		Transport: transport,
		Timestamp: time.Now(),
		RequestID: requestID,
		Algorithm: "MALFORMED",
		Token:     token,
		Latency:   latency,
	}
	if header, err := coretoken.PeekHeader(token); err == nil {
		event.Algorithm = truncateHeaderValue(string(header.Algorithm))
		event.KeyID = truncateHeaderValue(header.KeyID)
	}
	return event
}

func (e SecurityEvent) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("event", e.Outcome),
		slog.String("transport", e.Transport),
		slog.Time("timestamp", e.Timestamp),
		slog.String("request_id", e.RequestID),
		slog.String("algorithm", e.Algorithm),
		slog.String("token", redactToken(e.Token)),
		slog.Duration("latency", e.Latency),
	}
	optional := []struct{ key, value string }{
		{"subject", e.Subject},
		{"token_id", e.TokenID},
		{"kid", e.KeyID},
		{"reason", string(e.Reason)},
		{"field", e.Field},
	}
	for _, o := range optional {
		if o.value != "" {
			attrs = append(attrs, slog.String(o.key, o.value))
		}
	}
	return slog.GroupValue(attrs...)
}

// redactToken keeps at most the first 8 characters of a token
func redactToken(token string) string {
	if len(token) == 0 {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}

func logSecurityEvent(logger *slog.Logger, event SecurityEvent) {
	if logger == nil {
		return
	}
	if event.Outcome == outcomeFailure {
		logger.Warn("authentication failed", "auth_event", event)
		return
	}
	logger.Info("authentication succeeded", "auth_event", event)
}
