package convert

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// dateFormats are tried in order; the first that parses wins. RFC 3339
// date-times come first, then ISO dates, then the email date family.
var dateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"2 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
}

// ErrBadDate reports a string no known date grammar accepts.
var ErrBadDate = errors.New("unrecognised date")

// ParseDateStrict parses s with the first grammar that accepts it.
func ParseDateStrict(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrBadDate)
	}
	for _, f := range dateFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	// net/mail understands obsolete zones and optional weekdays.
	if t, err := mail.ParseDate(s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// ParseDate parses s, returning fallback when nothing accepts it.
func ParseDate(s string, fallback time.Time) time.Time {
	t, err := ParseDateStrict(s)
	if err != nil {
		return fallback
	}
	return t
}
