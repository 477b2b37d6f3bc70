package codec

import (
	"time"

	entikit "github.com/reoring/entikit"
)

// ParseRFC3339 parses an RFC3339 timestamp, accepting the Nano variant
// (trailing zeros optional).
func ParseRFC3339(path, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, entikit.FieldErrors{{Path: path, Code: entikit.CodeInvalidFormat, Message: "invalid RFC3339 time", Cause: err}}
	}
	return t, nil
}

// FormatRFC3339Canonical normalizes to UTC and formats using RFC3339Nano
// (Go trims trailing zeros).
func FormatRFC3339Canonical(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// IsRFC3339 reports whether s parses as an RFC3339 timestamp.
func IsRFC3339(s string) bool {
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}
