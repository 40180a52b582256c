package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexInt is an integer that tolerates sloppy wire encodings: JSON
// numbers, numeric strings, and null all decode without error. Several
// backend variants disagree on how counters are serialized.
type FlexInt int

// Int returns the plain integer value.
func (f FlexInt) Int() int { return int(f) }

// MarshalJSON encodes the value as a plain number.
func (f FlexInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(f))), nil
}

// UnmarshalJSON accepts a number, a quoted number, or null.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode numeric string: %w", err)
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("parse %q as int: %w", s, err)
		}
		*f = FlexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode number: %w", err)
	}
	*f = FlexInt(int(n))
	return nil
}

// NewFlexInt is a convenience for building optional counters.
func NewFlexInt(n int) *FlexInt {
	f := FlexInt(n)
	return &f
}
