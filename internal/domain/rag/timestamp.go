package rag

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// timestampLayout is ISO-8601 UTC with millisecond precision and a
// trailing Z, the wire format every external timestamp field uses.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp wraps time.Time so every entity field that crosses the HTTP
// boundary marshals the same way, regardless of how much sub-millisecond
// jitter the underlying clock produced.
type Timestamp struct {
	time.Time
}

// NewTimestamp normalizes to UTC and truncates to millisecond precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(timestampLayout) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	*t = NewTimestamp(parsed)
	return nil
}

// Scan implements sql.Scanner so the Postgres driver can populate this
// field directly from a timestamptz column.
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = NewTimestamp(v)
		return nil
	case nil:
		*t = Timestamp{}
		return nil
	default:
		return fmt.Errorf("unsupported scan source %T for Timestamp", src)
	}
}

// Value implements driver.Valuer so the Postgres driver can write this
// field as a plain time.Time.
func (t Timestamp) Value() (driver.Value, error) {
	return t.UTC(), nil
}
