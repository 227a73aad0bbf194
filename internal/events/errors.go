package events

import (
	"errors"

	"github.com/grip-observatory/observatory-api/internal/query"
	"github.com/grip-observatory/observatory-api/internal/timefmt"
)

// IsMalformed reports whether err was caused by client input rather than by
// the store.
func IsMalformed(err error) bool {
	for _, target := range []error{
		ErrInvalidFormat,
		ErrInvalidTimestamp,
		ErrFingerprint,
		timefmt.ErrInvalidTimestamp,
		query.ErrInvalidParam,
		query.ErrEmptyTerm,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
