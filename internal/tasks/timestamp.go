package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/calendar-planner/shared"
)

// layouts without a zone are read in the service location
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads the ISO-8601 forms the web client sends: RFC 3339,
// or a zone-less date/time that is taken to be local to loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", shared.ErrValidation, s)
}
