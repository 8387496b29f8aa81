package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WindowDays is how far back each audit looks.
const WindowDays = 14

// isoLayout matches the millisecond ISO-8601 form used in report headers.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

var referenceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Window is the audited time range, Oldest up to Reference, both UTC.
type Window struct {
	Reference time.Time
	Oldest    time.Time
}

// NewWindow builds the audit window ending at reference. A zero reference means now.
func NewWindow(reference time.Time) Window {
	if reference.IsZero() {
		reference = time.Now()
	}
	reference = reference.UTC()
	return Window{
		Reference: reference,
		Oldest:    reference.AddDate(0, 0, -WindowDays),
	}
}

// OldestUnix is the lower bound for the history query, in epoch seconds.
func (w Window) OldestUnix() string {
	return strconv.FormatInt(w.Oldest.Unix(), 10)
}

func (w Window) String() string {
	return fmt.Sprintf("%s - %s", w.Oldest.Format(isoLayout), w.Reference.Format(isoLayout))
}

// ParseReferenceDate parses an optional reference date override. Values without
// a zone are read as UTC. An empty value returns the zero time, meaning now.
func ParseReferenceDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}

	for _, layout := range referenceLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: reference date %q is not ISO-8601", ErrInvalidConfig, value)
}
