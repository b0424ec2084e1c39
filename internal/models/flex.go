package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DateKeyLayout is the canonical calendar-date key used across the pipeline.
const DateKeyLayout = "2006-01-02"

// EpochKey is the date key assigned to documents whose date could not be read.
const EpochKey = "1970-01-01"

// FlexDate decodes the date shapes found in stored workout documents:
// timestamp objects ({"seconds":..} or {"_seconds":..}), ISO 8601 strings,
// bare YYYY-MM-DD strings and epoch milliseconds. Decoding never fails;
// unreadable input leaves the date invalid.
type FlexDate struct {
	Time  time.Time
	Valid bool
}

// NewFlexDate wraps a known-good time.
func NewFlexDate(t time.Time) FlexDate {
	return FlexDate{Time: t.UTC(), Valid: !t.IsZero()}
}

type timestampObject struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *FlexDate) UnmarshalJSON(data []byte) error {
	*d = FlexDate{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if t, ok := parseDateString(s); ok {
			*d = NewFlexDate(t)
		}
	case '{':
		var ts timestampObject
		if err := json.Unmarshal(data, &ts); err != nil {
			return nil
		}
		switch {
		case ts.Seconds != nil:
			*d = NewFlexDate(time.Unix(*ts.Seconds, ts.Nanoseconds))
		case ts.USeconds != nil:
			*d = NewFlexDate(time.Unix(*ts.USeconds, ts.UNanoseconds))
		}
	default:
		ms, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return nil
		}
		*d = NewFlexDate(time.UnixMilli(int64(ms)))
	}
	return nil
}

// MarshalJSON writes the canonical date key, or null for invalid dates.
func (d FlexDate) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.UTC().Format(time.RFC3339))
}

// Key returns the YYYY-MM-DD key for the date, EpochKey when invalid.
func (d FlexDate) Key() string {
	if !d.Valid {
		return EpochKey
	}
	return d.Time.UTC().Format(DateKeyLayout)
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", DateKeyLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FlexNumber is an optional numeric field that may be stored as a JSON
// number or a numeric string. Anything else decodes as absent.
type FlexNumber struct {
	Value float64
	Set   bool
}

// Num returns a present FlexNumber.
func Num(v float64) FlexNumber {
	return FlexNumber{Value: v, Set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	*n = FlexNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	*n = Num(v)
	return nil
}

// MarshalJSON writes the number, or null when absent.
func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Or returns the value when present, otherwise def.
func (n FlexNumber) Or(def float64) float64 {
	if !n.Set {
		return def
	}
	return n.Value
}

// Ptr returns a pointer to the value, nil when absent.
func (n FlexNumber) Ptr() *float64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

// FlexString is a free-text field that some clients store as a number
// (e.g. "actualWeight": 135). Numbers decode to their literal text.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	*s = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return nil
		}
		*s = FlexString(v)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err == nil {
		*s = FlexString(data)
	}
	return nil
}

// String returns the trimmed text.
func (s FlexString) String() string {
	return strings.TrimSpace(string(s))
}
