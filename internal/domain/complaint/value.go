package complaint

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value is a loosely typed field as it arrives from a dataset or a client:
// JSON strings, numbers, booleans and null are all accepted and kept as text.
type Value struct {
	raw   string
	valid bool
}

// Text wraps a string field.
func Text(s string) Value { return Value{raw: s, valid: true} }

// Int wraps an integer field.
func Int(n int) Value { return Value{raw: strconv.Itoa(n), valid: true} }

// Null is a missing field.
func Null() Value { return Value{} }

// String returns the trimmed text, empty for null.
func (v Value) String() string { return strings.TrimSpace(v.raw) }

// IsNull reports whether the field was missing.
func (v Value) IsNull() bool { return !v.valid }

// UnmarshalJSON accepts any scalar JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	*v = Text(string(data))
	return nil
}

// MarshalJSON writes the field back as a JSON string or null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// Count coerces the field to a non-negative integer. Decimals are truncated;
// missing, negative and non-numeric values yield 0.
func (v Value) Count() int {
	s := v.String()
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return max(n, 0)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// Flag coerces the field to 0 or 1. Y/YES/TRUE/T and positive numbers are set.
func (v Value) Flag() int {
	switch strings.ToUpper(v.String()) {
	case "Y", "YES", "TRUE", "T":
		return 1
	case "", "N", "NO", "FALSE", "F":
		return 0
	}
	if v.Count() > 0 {
		return 1
	}
	return 0
}
