// Package timeutil normalizes incoming date values to the portal's
// fixed UTC+8 civil-time convention. The same rules apply on create
// and on update so a stored value round-trips as a no-op.
package timeutil

import (
	"fmt"
	"time"
)

// Civil is the fixed offset all timestamps are stored and served in.
var Civil = time.FixedZone("UTC+8", 8*60*60)

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseStart parses a start-date value. Bare dates become start of day
// in UTC+8; date-times without an offset are assumed to be UTC+8;
// values with an explicit offset pass through unchanged.
func ParseStart(s string) (time.Time, error) {
	return parse(s, false)
}

// ParseDue parses a due-date value. Bare dates become end of day
// (23:59:59) in UTC+8; otherwise the ParseStart rules apply.
func ParseDue(s string) (time.Time, error) {
	return parse(s, true)
}

func parse(s string, endOfDay bool) (time.Time, error) {
	if d, err := time.ParseInLocation("2006-01-02", s, Civil); err == nil {
		if endOfDay {
			return d.Add(24*time.Hour - time.Second), nil
		}
		return d, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, Civil); err == nil {
			return t, nil
		}
	}
	// explicit offset: keep it, only re-express in the civil zone
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(Civil), nil
	}
	return time.Time{}, fmt.Errorf("unsupported date value %q", s)
}
