package proxy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Duration is a wrapper around time.Duration that accepts both bare numbers
// (seconds) and Go duration strings in JSON and YAML
type Duration time.Duration

// String returns the duration as a string in standard Go duration format
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON converts the duration to a string in seconds like "60s"
func (d Duration) MarshalJSON() ([]byte, error) {
	seconds := time.Duration(d).Seconds()
	// Format with no decimal places if it's a whole number
	if seconds == float64(int64(seconds)) {
		return json.Marshal(fmt.Sprintf("%.0fs", seconds))
	}
	return json.Marshal(fmt.Sprintf("%gs", seconds))
}

// UnmarshalJSON converts JSON data to duration supporting multiple formats:
// - Numbers (30) as seconds
// - Numeric strings ("30") as seconds
// - Duration strings ("30s", "2h", etc.)
func (d *Duration) UnmarshalJSON(data []byte) error {
	var rawValue interface{}
	if err := json.Unmarshal(data, &rawValue); err != nil {
		return err
	}

	return d.parseValue(rawValue)
}

// MarshalYAML converts the duration to a string in seconds like "60s" for YAML
func (d Duration) MarshalYAML() (interface{}, error) {
	seconds := time.Duration(d).Seconds()
	if seconds == float64(int64(seconds)) {
		return fmt.Sprintf("%.0fs", seconds), nil
	}
	return fmt.Sprintf("%gs", seconds), nil
}

// UnmarshalYAML converts YAML data to duration, accepting the same formats
// as UnmarshalJSON
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var rawValue interface{}
	if err := unmarshal(&rawValue); err != nil {
		return err
	}

	return d.parseValue(rawValue)
}

// parseValue is a shared helper for parsing duration values from JSON/YAML
func (d *Duration) parseValue(rawValue interface{}) error {
	if s, ok := rawValue.(string); ok {
		// Try parsing as duration string first ("30s", "2h", etc.)
		if parsed, err := time.ParseDuration(s); err == nil {
			*d = Duration(parsed)
			return nil
		}
	}

	// Anything else is seconds: numbers, or numeric strings like "30"
	seconds, err := cast.ToFloat64E(rawValue)
	if err != nil {
		return fmt.Errorf("invalid duration format: %v", rawValue)
	}

	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}
