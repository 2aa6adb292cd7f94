package protocol

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// naiveLayout is a UTC datetime without a zone designator, the format the
// browser client produces and expects.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// The naive layout has a four digit year; instants outside it are clamped.
var (
	minTime = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxTime = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

func clamp(t time.Time) time.Time {
	t = t.UTC()
	switch {
	case t.Before(minTime):
		return minTime
	case t.After(maxTime):
		return maxTime
	}
	return t
}

// Timestamp is a UTC instant encoded as a naive datetime string.
type Timestamp struct {
	time.Time
}

// At returns t as a Timestamp normalised to UTC and clamped to years 0 through
// 9999.
func At(t time.Time) Timestamp {
	return Timestamp{Time: clamp(t)}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(clamp(t.Time).Format(naiveLayout))
}

// UnmarshalJSON accepts a naive UTC datetime or an RFC 3339 timestamp with an
// offset, which is converted to UTC.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "created_at")
	}

	if parsed, err := time.Parse(naiveLayout, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return errors.Errorf("created_at: unrecognised timestamp %q", s)
	}
	t.Time = parsed.UTC()
	return nil
}

// Equal reports whether t and u denote the same instant.
func (t Timestamp) Equal(u Timestamp) bool {
	return t.Time.Equal(u.Time)
}
