package coretoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	separator = "."

	// DefaultMaxLength bounds the token text accepted by Verify and DecodeUnsafe
	DefaultMaxLength = 16 * 1024
)

// segmentEncoding is base64url without padding. Strict decoding rejects
// non-zero trailing bits so every segment has exactly one valid spelling.
var segmentEncoding = base64.RawURLEncoding.Strict()

func encodeSegment(v json.Marshaler) (string, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	return segmentEncoding.EncodeToString(raw), nil
}

func decodeBytes(segment string) ([]byte, error) {
	return segmentEncoding.DecodeString(segment)
}

// splitToken returns the three segments of a token
func splitToken(token string, maxLength int) ([3]string, error) {
	var parts [3]string
	if token == "" {
		return parts, newError(ErrMalformed, "", "empty token", nil)
	}
	if maxLength > 0 && len(token) > maxLength {
		return parts, newError(ErrMalformed, "", fmt.Sprintf("token exceeds %d bytes", maxLength), nil)
	}
	if n := strings.Count(token, separator); n != 2 {
		return parts, newError(ErrMalformed, "", fmt.Sprintf("token must have 3 segments, got %d", n+1), nil)
	}
	first := strings.Index(token, separator)
	second := first + 1 + strings.Index(token[first+1:], separator)
	parts[0], parts[1], parts[2] = token[:first], token[first+1:second], token[second+1:]
	return parts, nil
}

func decodeHeader(segment string) (Header, error) {
	raw, err := decodeBytes(segment)
	if err != nil {
		return Header{}, newError(ErrMalformed, "header", "header is not valid base64url", err)
	}
	var h Header
	if err := h.UnmarshalJSON(raw); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return Header{}, e
		}
		return Header{}, newError(ErrMalformed, "header", "header is not valid JSON", err)
	}
	return h, nil
}

func decodeClaims(segment string) (*Claims, error) {
	raw, err := decodeBytes(segment)
	if err != nil {
		return nil, newError(ErrMalformed, "payload", "payload is not valid base64url", err)
	}
	c := NewClaims()
	if err := c.UnmarshalJSON(raw); err != nil {
		return nil, newError(ErrMalformed, "payload", "payload is not a valid JSON object", err)
	}
	return c, nil
}
