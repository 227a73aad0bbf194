package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grip-observatory/observatory-api/internal/models"
)

// ErrFingerprint is returned when a fingerprint has the wrong number of
// prefixes for the event type.
var ErrFingerprint = errors.New("invalid pfx_event fingerprint")

// FindPfxEvent selects one pfx_event of ev by fingerprint. In a fingerprint
// "-" stands for "/" and "_" separates the sub and super prefix of pair
// events. A nil result with a nil error means no pfx_event matched.
func FindPfxEvent(ev models.Document, fingerprint string) (models.Document, error) {
	search := strings.Split(strings.ReplaceAll(fingerprint, "-", "/"), "_")
	evType, _ := ev["event_type"].(string)

	var match func(details map[string]any) bool
	switch evType {
	case models.EventTypeMOAS, models.EventTypeEdges:
		if len(search) != 1 {
			return nil, fmt.Errorf("%w: %s must only have one prefix in the fingerprint", ErrFingerprint, evType)
		}
		match = func(d map[string]any) bool { return d["prefix"] == search[0] }
	case models.EventTypeDefcon, models.EventTypeSubMOAS:
		if len(search) != 2 {
			return nil, fmt.Errorf("%w: %s must have two prefixes (sub-pfx and super-pfx) in the fingerprint", ErrFingerprint, evType)
		}
		match = func(d map[string]any) bool { return d["sub_pfx"] == search[0] && d["super_pfx"] == search[1] }
	default:
		return nil, nil
	}

	pfxEvents, _ := ev["pfx_events"].([]any)
	for _, pe := range pfxEvents {
		pfx, ok := pe.(map[string]any)
		if !ok {
			continue
		}
		details, ok := pfx["details"].(map[string]any)
		if ok && match(details) {
			return pfx, nil
		}
	}
	return nil, nil
}
