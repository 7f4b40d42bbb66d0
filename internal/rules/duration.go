package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that marshals as a duration string ("3s",
// "500ms") in both YAML and JSON rule documents. Bare integers are accepted
// as milliseconds for compatibility with older documents.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(s string) (Duration, error) {
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return Duration(v), nil
}

// UnmarshalYAML accepts "3s"-style strings or integer milliseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var asInt int64
	if err := node.Decode(&asInt); err == nil {
		*d = Duration(time.Duration(asInt) * time.Millisecond)
		return nil
	}
	var asStr string
	if err := node.Decode(&asStr); err != nil {
		return fmt.Errorf("duration must be a string or integer milliseconds")
	}
	v, err := parseDuration(asStr)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML emits the duration-string form.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalJSON accepts "3s"-style strings or integer milliseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var asInt int64
	if err := json.Unmarshal(data, &asInt); err == nil {
		*d = Duration(time.Duration(asInt) * time.Millisecond)
		return nil
	}
	var asStr string
	if err := json.Unmarshal(data, &asStr); err != nil {
		return fmt.Errorf("duration must be a string or integer milliseconds")
	}
	v, err := parseDuration(asStr)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalJSON emits the duration-string form.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }
