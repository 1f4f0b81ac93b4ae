package validate

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are the accepted ISO 8601 shapes, tried in order. Zoneless
// values are interpreted as UTC.
var dateLayouts = []struct {
	layout  string
	hasZone bool
}{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
}

// Date parses an ISO 8601 date or datetime. The result is always in UTC.
func Date(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("must not be empty")
	}
	for _, l := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if l.hasZone {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, time.UTC)
		}
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a valid ISO 8601 date", s)
}

// PastDate parses an ISO 8601 date and rejects values after now.
func PastDate(raw string, now time.Time) (time.Time, error) {
	t, err := Date(raw)
	if err != nil {
		return time.Time{}, err
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("cannot be in the future (%s)", t.Format(time.RFC3339))
	}
	return t, nil
}

// DateNotBefore parses an ISO 8601 date and enforces floor <= value <= now.
// Used for cross-date rules such as last_modified >= created_date.
func DateNotBefore(raw string, floor, now time.Time) (time.Time, error) {
	t, err := PastDate(raw, now)
	if err != nil {
		return time.Time{}, err
	}
	if t.Before(floor) {
		return time.Time{}, fmt.Errorf("cannot be before %s", floor.Format(time.RFC3339))
	}
	return t, nil
}
