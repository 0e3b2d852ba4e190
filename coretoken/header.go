package coretoken

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Dialect selects the header field names written by Issue
type Dialect uint8

const (
	// DialectCore writes {"algorithm":...,"type":"core-token"}
	DialectCore Dialect = iota
	// DialectJWT writes {"alg":...,"typ":"JWT"} for interoperability with JWT libraries
	DialectJWT
)

// Token type tags
const (
	TypeCore = "core-token"
	TypeJWT  = "JWT"
)

func (d Dialect) String() string {
	if d == DialectJWT {
		return "jwt"
	}
	return "core"
}

// ParseDialect accepts "core" or "jwt" (case-insensitive)
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "core", TypeCore:
		return DialectCore, nil
	case "jwt":
		return DialectJWT, nil
	}
	return DialectCore, fmt.Errorf("unknown dialect %q", s)
}

// Header is the first token segment
type Header struct {
	Algorithm Algorithm
	Type      string
	KeyID     string
	Dialect   Dialect
}

type coreHeader struct {
	Algorithm string `json:"algorithm"`
	Type      string `json:"type"`
	KeyID     string `json:"kid,omitempty"`
}

type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid,omitempty"`
}

// MarshalJSON writes the header using its dialect's field names
func (h Header) MarshalJSON() ([]byte, error) {
	if h.Dialect == DialectJWT {
		return json.Marshal(jwtHeader{Alg: string(h.Algorithm), Typ: h.Type, Kid: h.KeyID})
	}
	return json.Marshal(coreHeader{Algorithm: string(h.Algorithm), Type: h.Type, KeyID: h.KeyID})
}

// UnmarshalJSON accepts either dialect. Errors are *Error values naming the
// offending field.
func (h *Header) UnmarshalJSON(data []byte) error {
	fields, err := headerFields(data)
	if err != nil {
		return newError(ErrMalformed, "header", "header is not a JSON object without duplicate keys", err)
	}

	alg, algSet, err := headerString(fields, "algorithm", "alg")
	if err != nil {
		return err
	}
	if !algSet {
		return newError(ErrMalformed, "algorithm", "missing algorithm in token header", nil)
	}
	typ, typSet, err := headerString(fields, "type", "typ")
	if err != nil {
		return err
	}
	if typSet && !strings.EqualFold(typ, TypeCore) && !strings.EqualFold(typ, TypeJWT) {
		return newError(ErrMalformed, "type", "unrecognised token type", nil)
	}
	kid, _, err := headerString(fields, "kid", "kid")
	if err != nil {
		return err
	}

	dialect := DialectCore
	if _, ok := fields["alg"]; ok {
		dialect = DialectJWT
	}
	*h = Header{Algorithm: Algorithm(alg), Type: typ, KeyID: kid, Dialect: dialect}
	return nil
}

// headerFields splits a header object into its raw members. A repeated
// member is an error rather than last-one-wins.
func headerFields(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("unexpected JSON token %v", tok)
	}

	fields := make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", keyTok)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after header object")
	}
	return fields, nil
}

// headerString reads a string member that may appear under a core name or a
// JWT name. Both present with different values is malformed.
func headerString(fields map[string]json.RawMessage, coreName, jwtName string) (string, bool, error) {
	var (
		value string
		found bool
	)
	for _, name := range []string{coreName, jwtName} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
			return "", false, newError(ErrMalformed, coreName, "header field must be a string", nil)
		}
		if found && s != value {
			return "", false, newError(ErrMalformed, coreName, "conflicting header fields", nil)
		}
		value, found = s, true
	}
	return value, found, nil
}

func newHeader(alg Algorithm, dialect Dialect, keyID string) Header {
	typ := TypeCore
	if dialect == DialectJWT {
		typ = TypeJWT
	}
	return Header{Algorithm: alg, Type: typ, KeyID: keyID, Dialect: dialect}
}
