// Package safeconv converts loosely typed numbers (decoded YAML, JSON, TOML or
// tool output) into Go numeric types without silent truncation or overflow.
package safeconv

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Sentinel errors returned by the conversion functions.
var (
	ErrNotNumber   = errors.New("safeconv: value is not a number")
	ErrNotIntegral = errors.New("safeconv: value has a fractional part")
)

// ToInt converts v to int. Accepted inputs are every built-in integer and float
// type, [json.Number] and decimal strings. Floats must be integral.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return safecast.Conv[int](n)
	case uint:
		return safecast.Conv[int](n)
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return safecast.Conv[int](n)
	case uint64:
		return safecast.Conv[int](n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		return stringToInt(n.String())
	case string:
		return stringToInt(n)
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumber, v)
	}
}

// ToFloat converts v to float64. Accepts the same inputs as [ToInt].
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumber, n)
		}

		return f, nil
	}

	i, err := ToInt(v)
	if err != nil {
		return 0, err
	}

	return float64(i), nil
}

// ToUint32 converts a non-negative int to uint32.
func ToUint32(v int) (uint32, error) {
	return safecast.Conv[uint32](v)
}

// IsNumber reports whether v is a value [ToFloat] accepts without parsing text.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	default:
		return false
	}
}

func floatToInt(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotNumber, f)
	}

	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v", ErrNotIntegral, f)
	}

	return safecast.Convert[int](f)
}

func stringToInt(s string) (int, error) {
	s = strings.TrimSpace(s)

	i, err := strconv.Atoi(s)
	if err == nil {
		return i, nil
	}

	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumber, s)
	}

	return floatToInt(f)
}
