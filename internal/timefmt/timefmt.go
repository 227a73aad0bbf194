// Package timefmt converts the timestamp spellings accepted by the query API
// into the canonical "YYYY-MM-DD HH:MM:SS" form stored in event documents.
package timefmt

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical timestamp layout used by event documents (UTC).
const Layout = "2006-01-02 15:04:05"

// ErrInvalidTimestamp is returned for input that matches none of the accepted forms.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

var (
	canonicalRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
	minuteRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}$`)
)

// Normalize converts ts into the canonical layout.
//
// Accepted inputs, in priority order:
//   - 2020-04-09 23:52:00 (returned unchanged)
//   - 2020-04-09T23:52    (seconds appended)
//   - 1586476320          (unix seconds)
//   - 1586476320000       (unix milliseconds)
//
// An integer whose magnitude exceeds ten times the current unix time is
// taken to be milliseconds.
func Normalize(ts string, now time.Time) (string, error) {
	if canonicalRe.MatchString(ts) {
		return ts, nil
	}

	if minuteRe.MatchString(ts) {
		return strings.Replace(ts, "T", " ", 1) + ":00", nil
	}

	n, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		return "", ErrInvalidTimestamp
	}

	if abs(n) > now.Unix()*10 {
		n /= 1000
	}

	t := time.Unix(n, 0).UTC()
	if t.Year() < 0 || t.Year() > 9999 {
		return "", ErrInvalidTimestamp
	}
	return t.Format(Layout), nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
