package proxy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ByteSize is a size in bytes that accepts nginx-style unit suffixes
// ("20m", "512k", "1g") as well as bare numbers in JSON and YAML
type ByteSize int64

// String returns the size using the largest unit that divides it evenly
func (b ByteSize) String() string {
	switch {
	case b >= 1<<30 && b%(1<<30) == 0:
		return fmt.Sprintf("%dg", b>>30)
	case b >= 1<<20 && b%(1<<20) == 0:
		return fmt.Sprintf("%dm", b>>20)
	case b >= 1<<10 && b%(1<<10) == 0:
		return fmt.Sprintf("%dk", b>>10)
	default:
		return fmt.Sprintf("%d", int64(b))
	}
}

// MarshalJSON converts the size to its suffixed string form
func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON converts JSON data to a byte size supporting multiple formats:
// - Numbers (20971520) as bytes
// - Numeric strings ("20971520") as bytes
// - Suffixed strings ("20m", "512k", "1g")
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var rawValue interface{}
	if err := json.Unmarshal(data, &rawValue); err != nil {
		return err
	}

	return b.parseValue(rawValue)
}

// MarshalYAML converts the size to its suffixed string form for YAML
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// UnmarshalYAML converts YAML data to a byte size, accepting the same
// formats as UnmarshalJSON
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var rawValue interface{}
	if err := unmarshal(&rawValue); err != nil {
		return err
	}

	return b.parseValue(rawValue)
}

// parseValue is a shared helper for parsing size values from JSON/YAML
func (b *ByteSize) parseValue(rawValue interface{}) error {
	if s, ok := rawValue.(string); ok {
		lower := strings.ToLower(strings.TrimSpace(s))

		var multiplier int64 = 1
		switch {
		case strings.HasSuffix(lower, "k"):
			multiplier = 1 << 10
			lower = strings.TrimSuffix(lower, "k")
		case strings.HasSuffix(lower, "m"):
			multiplier = 1 << 20
			lower = strings.TrimSuffix(lower, "m")
		case strings.HasSuffix(lower, "g"):
			multiplier = 1 << 30
			lower = strings.TrimSuffix(lower, "g")
		}

		n, err := cast.ToInt64E(lower)
		if err != nil {
			return fmt.Errorf("invalid size format: %q", s)
		}
		if n < 0 {
			return fmt.Errorf("size must not be negative: %q", s)
		}

		*b = ByteSize(n * multiplier)
		return nil
	}

	n, err := cast.ToInt64E(rawValue)
	if err != nil {
		return fmt.Errorf("size must be a number or string, got %T", rawValue)
	}
	if n < 0 {
		return fmt.Errorf("size must not be negative: %d", n)
	}

	*b = ByteSize(n)
	return nil
}
