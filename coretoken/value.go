package coretoken

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"unicode/utf8"
)

// maxNesting bounds array/object depth on both encode and decode. It also
// stops encoding of self-referencing values.
const maxNesting = 64

var errTooDeep = errors.New("value is cyclic or nested too deeply")

// errInvalidUTF8 is returned for strings that JSON cannot carry unchanged
var errInvalidUTF8 = errors.New("string is not valid UTF-8")

// Kind is the type tag of a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON-compatible claim value. The zero Value is null.
//
// Numbers keep their JSON literal, so integers outside the float64 exact
// range survive a decode/encode cycle unchanged.
type Value struct {
	kind Kind
	b    bool
	s    string // string contents or number literal
	arr  []Value
	obj  *Claims
}

// Null returns the null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int wraps an integer
func Int(n int64) Value { return Value{kind: KindNumber, s: strconv.FormatInt(n, 10)} }

// Uint wraps an unsigned integer
func Uint(n uint64) Value { return Value{kind: KindNumber, s: strconv.FormatUint(n, 10)} }

// Float wraps a float. NaN and infinities cannot be encoded and make Issue fail.
func Float(f float64) Value {
	return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Number wraps a JSON number literal
func Number(n json.Number) Value { return Value{kind: KindNumber, s: string(n)} }

// Array wraps a list of values
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value{}, items...)}
}

// Object wraps a nested claim set. A nil set is treated as empty.
func Object(c *Claims) Value {
	if c == nil {
		c = NewClaims()
	}
	return Value{kind: KindObject, obj: c}
}

// Kind returns the type tag
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsNumber() (json.Number, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return json.Number(v.s), true
}

// AsInt64 returns the number as an int64 when it is an integral literal in range.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(v.s, 10, 64)
	return n, err == nil
}

func (v Value) AsFloat64() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.s, 64)
	return f, err == nil
}

// AsArray returns a copy of the array elements
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return append([]Value{}, v.arr...), true
}

// AsObject returns the nested claim set. Callers must not modify it.
func (v Value) AsObject() (*Claims, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// Interface converts v to plain Go values: nil, bool, json.Number, string,
// []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return json.Number(v.s)
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		return v.obj.Map()
	default:
		return nil
	}
}

// Equal reports deep equality. Object key order is ignored; numbers compare
// by value when both literals parse.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindNumber:
		if v.s == o.s {
			return true
		}
		a, errA := strconv.ParseFloat(v.s, 64)
		b, errB := strconv.ParseFloat(o.s, 64)
		return errA == nil && errB == nil && a == b
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.obj.Equal(o.obj)
	}
	return false
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid " + v.kind.String() + ">"
	}
	return string(b)
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.appendJSON(&buf, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) appendJSON(buf *bytes.Buffer, depth int) error {
	if depth > maxNesting {
		return errTooDeep
	}
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		// json.Number marshalling rejects literals such as NaN.
		b, err := json.Marshal(json.Number(v.s))
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		if !utf8.ValidString(v.s) {
			return errInvalidUTF8
		}
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.appendJSON(buf, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		return v.obj.appendJSON(buf, depth)
	default:
		return fmt.Errorf("unknown value kind %d", v.kind)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Object key order is preserved
// and duplicate keys are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := parseValue(dec, 0)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after top-level value")
	}
	*v = parsed
	return nil
}

func parseValue(dec *json.Decoder, depth int) (Value, error) {
	if depth > maxNesting {
		return Value{}, errTooDeep
	}
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := parseValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindArray, arr: items}, nil
		case '{':
			obj, err := parseObjectBody(dec, depth)
			if err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, obj: obj}, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// parseObjectBody reads members up to and including the closing brace.
func parseObjectBody(dec *json.Decoder, depth int) (*Claims, error) {
	obj := NewClaims()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", keyTok)
		}
		if obj.Has(key) {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		val, err := parseValue(dec, depth+1)
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

// ValueOf converts a Go value into a Value. Maps are converted with sorted
// keys. Types without a direct mapping go through encoding/json; values it
// cannot encode (channels, funcs, cycles) yield an ErrEncoding error.
func ValueOf(x any) (Value, error) {
	v, err := valueOf(x, 0)
	if err != nil {
		return Value{}, newError(ErrEncoding, "", "unsupported claim value", err)
	}
	return v, nil
}

func valueOf(x any, depth int) (Value, error) {
	if depth > maxNesting {
		return Value{}, errTooDeep
	}
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Claims:
		if t == nil {
			return Null(), nil
		}
		return Object(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint8:
		return Uint(uint64(t)), nil
	case uint16:
		return Uint(uint64(t)), nil
	case uint32:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case float32:
		return floatValue(float64(t))
	case float64:
		return floatValue(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			v, err := valueOf(item, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Value{kind: KindArray, arr: items}, nil
	case map[string]any:
		obj, err := claimsFromMap(t, depth+1)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, obj: obj}, nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return Value{}, fmt.Errorf("unsupported type %T", x)
	}
	raw, err := json.Marshal(x)
	if err != nil {
		return Value{}, err
	}
	var v Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return Value{}, err
	}
	return v, nil
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("unsupported float value %v", f)
	}
	return Float(f), nil
}

func claimsFromMap(m map[string]any, depth int) (*Claims, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	c := NewClaims()
	for _, k := range keys {
		v, err := valueOf(m[k], depth)
		if err != nil {
			return nil, fmt.Errorf("claim %q: %w", k, err)
		}
		c.Set(k, v)
	}
	return c, nil
}
