// Package timex holds time helpers shared by configuration and the core:
// a JSON-friendly Duration and an injectable Clock.
package timex

import (
	"encoding/json"
	"errors"
	"time"
)

// Duration wraps time.Duration so it can be decoded from JSON either as a
// string accepted by time.ParseDuration ("15m", "168h") or as an integer
// number of nanoseconds.
type Duration struct {
	time.Duration
}

// MarshalJSON encodes the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "1m30s"-style strings and integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		return err
	default:
		return errors.New("invalid duration")
	}
}
