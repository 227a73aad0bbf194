package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// ErrInvalidParam is returned when a query parameter has the wrong type.
var ErrInvalidParam = errors.New("invalid parameter")

// Default suspicion bounds applied when min_susp/max_susp are absent.
const (
	DefaultMinSusp = 0
	DefaultMaxSusp = 100
)

// Params is the decoded filter intent of one /json/events request.
// Nil pointers mean the parameter was not supplied.
type Params struct {
	TSStart     *string
	TSEnd       *string
	Overlap     bool
	MinSusp     int
	MaxSusp     int
	MinDuration *int
	MaxDuration *int
	Prefixes    *string
	ASNs        *string
	Tags        *string
	Codes       *string
}

// DefaultParams returns Params with the default suspicion window.
func DefaultParams() Params {
	return Params{MinSusp: DefaultMinSusp, MaxSusp: DefaultMaxSusp}
}

// ParseParams decodes the filter parameters from a URL query.
func ParseParams(v url.Values) (Params, error) {
	p := DefaultParams()

	p.TSStart = optString(v, "ts_start")
	p.TSEnd = optString(v, "ts_end")
	p.Prefixes = optString(v, "pfxs")
	p.ASNs = optString(v, "asns")
	p.Tags = optString(v, "tags")
	p.Codes = optString(v, "codes")

	if s := optString(v, "overlap"); s != nil {
		b, err := strconv.ParseBool(*s)
		if err != nil {
			return Params{}, fmt.Errorf("%w: overlap must be a boolean", ErrInvalidParam)
		}
		p.Overlap = b
	}

	var err error
	if p.MinSusp, err = intOr(v, "min_susp", DefaultMinSusp); err != nil {
		return Params{}, err
	}
	if p.MaxSusp, err = intOr(v, "max_susp", DefaultMaxSusp); err != nil {
		return Params{}, err
	}
	if p.MinDuration, err = OptInt(v, "min_duration"); err != nil {
		return Params{}, err
	}
	if p.MaxDuration, err = OptInt(v, "max_duration"); err != nil {
		return Params{}, err
	}

	return p, nil
}

// OptInt returns the integer value of name, or nil when it is absent.
func OptInt(v url.Values, name string) (*int, error) {
	s := optString(v, name)
	if s == nil {
		return nil, nil
	}
	n, err := strconv.Atoi(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidParam, name)
	}
	return &n, nil
}

func intOr(v url.Values, name string, def int) (int, error) {
	n, err := OptInt(v, name)
	if err != nil || n == nil {
		return def, err
	}
	return *n, nil
}

func optString(v url.Values, name string) *string {
	if !v.Has(name) {
		return nil
	}
	s := v.Get(name)
	return &s
}
