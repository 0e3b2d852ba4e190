package coretoken

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
	"unicode/utf8"
)

// Registered claim names
const (
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimTokenID   = "jti"
)

// Claims is the token payload: an insertion-ordered mapping from claim names
// to values. The zero value is an empty set ready for use.
type Claims struct {
	keys   []string
	values map[string]Value
}

// NewClaims returns an empty claim set
func NewClaims() *Claims {
	return &Claims{values: make(map[string]Value)}
}

// ClaimsFromMap converts a plain map. Keys are inserted in sorted order.
func ClaimsFromMap(m map[string]any) (*Claims, error) {
	c, err := claimsFromMap(m, 0)
	if err != nil {
		return nil, newError(ErrEncoding, "", "unsupported claim value", err)
	}
	return c, nil
}

// Set adds or replaces a claim. A replaced claim keeps its position.
func (c *Claims) Set(key string, v Value) *Claims {
	if c.values == nil {
		c.values = make(map[string]Value)
	}
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = v
	return c
}

// SetAny converts x with ValueOf and stores it
func (c *Claims) SetAny(key string, x any) error {
	v, err := ValueOf(x)
	if err != nil {
		return err
	}
	c.Set(key, v)
	return nil
}

func (c *Claims) Get(key string) (Value, bool) {
	if c == nil {
		return Value{}, false
	}
	v, ok := c.values[key]
	return v, ok
}

func (c *Claims) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// GetString returns a string claim, or "" when absent or not a string
func (c *Claims) GetString(key string) string {
	v, _ := c.Get(key)
	s, _ := v.AsString()
	return s
}

func (c *Claims) Delete(key string) {
	if c == nil {
		return
	}
	if _, ok := c.values[key]; !ok {
		return
	}
	delete(c.values, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i:i], c.keys[i+1:]...)
			break
		}
	}
}

// Keys returns claim names in insertion order
func (c *Claims) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

func (c *Claims) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Clone returns a deep copy. A cyclic claim set is copied only down to the
// nesting limit.
func (c *Claims) Clone() *Claims {
	out, _ := c.clone(0)
	return out
}

func (c *Claims) clone(depth int) (*Claims, error) {
	out := NewClaims()
	if c == nil {
		return out, nil
	}
	if depth > maxNesting {
		return out, errTooDeep
	}
	for _, k := range c.keys {
		v, err := c.values[k].clone(depth + 1)
		out.Set(k, v)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (v Value) clone(depth int) (Value, error) {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			cv, err := item.clone(depth + 1)
			items[i] = cv
			if err != nil {
				v.arr = items
				return v, err
			}
		}
		v.arr = items
	case KindObject:
		obj, err := v.obj.clone(depth)
		v.obj = obj
		return v, err
	}
	return v, nil
}

// Equal compares two claim sets ignoring key order
func (c *Claims) Equal(o *Claims) bool {
	if c.Len() != o.Len() {
		return false
	}
	for _, k := range c.Keys() {
		ov, ok := o.Get(k)
		if !ok || !c.values[k].Equal(ov) {
			return false
		}
	}
	return true
}

// Map converts the claims to a plain map (see Value.Interface)
func (c *Claims) Map() map[string]any {
	out := make(map[string]any, c.Len())
	for _, k := range c.Keys() {
		out[k] = c.values[k].Interface()
	}
	return out
}

// maxNumericDate bounds NumericDate claims to seconds that a float64 holds
// exactly (2^53), well inside the range of time.Time.
const maxNumericDate = 1 << 53

// Time reads a NumericDate claim. ok is false when the claim is absent; an
// error is returned when it is present but not a number.
func (c *Claims) Time(key string) (t time.Time, ok bool, err error) {
	v, present := c.Get(key)
	if !present {
		return time.Time{}, false, nil
	}
	f, isNum := v.AsFloat64()
	if !isNum || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, true, fmt.Errorf("claim %q must be a numeric date", key)
	}
	if math.Abs(f) > maxNumericDate {
		return time.Time{}, true, fmt.Errorf("claim %q is outside the supported date range", key)
	}
	if n, isInt := v.AsInt64(); isInt {
		return time.Unix(n, 0), true, nil
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)), true, nil
}

// SetTime stores t as a NumericDate (whole seconds)
func (c *Claims) SetTime(key string, t time.Time) *Claims {
	return c.Set(key, Int(t.Unix()))
}

// MarshalJSON writes claims in insertion order
func (c *Claims) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.appendJSON(&buf, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Claims) appendJSON(buf *bytes.Buffer, depth int) error {
	if depth > maxNesting {
		return errTooDeep
	}
	buf.WriteByte('{')
	for i, k := range c.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if !utf8.ValidString(k) {
			return fmt.Errorf("claim name %q: %w", k, errInvalidUTF8)
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := c.values[k].appendJSON(buf, depth+1); err != nil {
			return fmt.Errorf("claim %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON requires a JSON object and preserves its member order
func (c *Claims) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("claims must be a JSON object")
	}
	parsed, err := parseObjectBody(dec, 0)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after claims object")
	}
	*c = *parsed
	return nil
}
