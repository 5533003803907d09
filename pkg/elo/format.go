package elo

import (
	"fmt"
	"strings"
)

// Format is the series length of a match
type Format int

// Supported series formats
const (
	BO1 Format = iota + 1 // Single map
	BO3                   // First to two maps
	BO5                   // First to three maps
)

// String returns the lowercase notation used in match logs (bo1, bo3, bo5)
func (f Format) String() string {
	switch f {
	case BO1:
		return "bo1"
	case BO3:
		return "bo3"
	case BO5:
		return "bo5"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// MarshalText implements encoding.TextMarshaler so formats serialize as "bo3"
func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Valid reports whether f is one of the supported formats
func (f Format) Valid() bool {
	return f == BO1 || f == BO3 || f == BO5
}

// Weight returns the K-factor multiplier applied to historical matches of this format.
// Longer series carry more information about relative strength.
func (f Format) Weight() float64 {
	switch f {
	case BO3:
		return 1.2
	case BO5:
		return 1.5
	default:
		return 1.0
	}
}

// ParseFormat parses "bo1", "BO3", "bo5" and the bare digits "1", "3", "5"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bo1", "1":
		return BO1, nil
	case "bo3", "3":
		return BO3, nil
	case "bo5", "5":
		return BO5, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}
