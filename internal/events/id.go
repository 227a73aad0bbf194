package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Index name prefixes for production and test partitions.
const (
	QueryIndexPrefix = "observatory-v4-query-events"
	TestIndexPrefix  = "observatory-v4-test-events"
)

var (
	ErrInvalidFormat    = errors.New("invalid event ID format -- should be <evtype>-<timestamp>-<aslist>")
	ErrInvalidTimestamp = errors.New("invalid timestamp in event ID -- should be a unix timestamp")
)

// ID is a parsed event identifier of the form <event_type>-<unix_ts>-<as_list>.
type ID struct {
	EventType string
	Time      time.Time
	ASList    string
}

// ParseID splits an event id into its three components.
func ParseID(s string) (ID, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return ID{}, ErrInvalidFormat
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ID{}, ErrInvalidTimestamp
	}
	t := time.Unix(ts, 0).UTC()
	if y := t.Year(); y < 0 || y > 9999 {
		return ID{}, ErrInvalidTimestamp
	}
	return ID{EventType: parts[0], Time: t, ASList: parts[2]}, nil
}

// Partition returns the production index holding the event.
func (id ID) Partition() string {
	return fmt.Sprintf("%s-%s-%s", QueryIndexPrefix, id.EventType, id.Time.Format("2006-01"))
}

// SearchIndex returns the index pattern covering every monthly partition of
// eventType. "all" and "" select every event type.
func SearchIndex(eventType string, debug bool) string {
	if eventType == "" || eventType == "all" {
		eventType = "*"
	}
	prefix := QueryIndexPrefix
	if debug {
		prefix = TestIndexPrefix
	}
	return fmt.Sprintf("%s-%s-*", prefix, eventType)
}
