// Package timestamp implements the monotonic wall-clock version token used
// to tag snapshots and app specs.
package timestamp

import "time"

// Timestamp is a monotonic wall-clock instant with a total order and a
// lossless string round-trip (RFC3339Nano).
type Timestamp struct {
	t time.Time
}

// Zero is the unset Timestamp.
var Zero Timestamp

// Now returns the current instant.
func Now() Timestamp {
	return Timestamp{t: time.Now().UTC()}
}

// Parse parses an RFC3339Nano-formatted string.
func Parse(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, err
	}

	return Timestamp{t: t.UTC()}, nil
}

// String renders the timestamp as RFC3339Nano.
func (ts Timestamp) String() string {
	return ts.t.Format(time.RFC3339Nano)
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*ts = parsed
	return nil
}

// IsZero reports whether the Timestamp is unset.
func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}

// Before reports whether ts happened before other.
func (ts Timestamp) Before(other Timestamp) bool {
	return ts.t.Before(other.t)
}

// After reports whether ts happened after other.
func (ts Timestamp) After(other Timestamp) bool {
	return ts.t.After(other.t)
}

// Equal reports whether ts and other denote the same instant.
func (ts Timestamp) Equal(other Timestamp) bool {
	return ts.t.Equal(other.t)
}

// Time returns the underlying time.Time.
func (ts Timestamp) Time() time.Time {
	return ts.t
}

// FromTime wraps an existing time.Time as a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp{t: t.UTC()}
}
