package query

import (
	"fmt"
	"time"

	"github.com/grip-observatory/observatory-api/internal/timefmt"
)

// Document fields referenced by event queries.
const (
	FieldViewTS           = "view_ts"
	FieldFinishedTS       = "finished_ts"
	FieldDuration         = "duration"
	FieldPosition         = "position"
	FieldPrimaryInference = "summary.inference_result.primary_inference"
	FieldSuspicion        = "summary.inference_result.primary_inference.suspicion_level"
	FieldPrefixes         = "summary.prefixes"
	FieldASes             = "summary.ases"
	FieldTagNames         = "summary.tags.name"
	FieldInferenceIDs     = "summary.inference_result.inferences.inference_id"
)

// PositionFinished marks documents that are excluded from every search.
const PositionFinished = "FINISHED"

// Build translates p into a Query. now disambiguates second and millisecond
// unix timestamps.
func Build(p Params, now time.Time) (Query, error) {
	var q Query

	if p.TSStart != nil {
		start, err := timefmt.Normalize(*p.TSStart, now)
		if err != nil {
			return Query{}, fmt.Errorf("ts_start: %w", err)
		}
		q.Filter = append(q.Filter, startFilter(start, p.Overlap))
	}

	if p.TSEnd != nil {
		end, err := timefmt.Normalize(*p.TSEnd, now)
		if err != nil {
			return Query{}, fmt.Errorf("ts_end: %w", err)
		}
		// only the start of the event is compared against ts_end
		q.Filter = append(q.Filter, Range{Field: FieldViewTS, LTE: end})
	}

	q.MustNot = append(q.MustNot, Match{Field: FieldPosition, Value: PositionFinished})

	// uninferred events are never returned
	q.Must = append(q.Must,
		Exists{Field: FieldPrimaryInference},
		Range{Field: FieldSuspicion, GTE: p.MinSusp, LTE: p.MaxSusp},
	)

	// events without a duration would be excluded by an unconditional range
	if p.MinDuration != nil || p.MaxDuration != nil {
		r := Range{Field: FieldDuration}
		if p.MinDuration != nil {
			r.GTE = *p.MinDuration
		}
		if p.MaxDuration != nil {
			r.LTE = *p.MaxDuration
		}
		q.Must = append(q.Must, r)
	}

	lists := []struct {
		field string
		raw   *string
	}{
		{FieldPrefixes, p.Prefixes},
		{FieldASes, p.ASNs},
		{FieldTagNames, p.Tags},
		{FieldInferenceIDs, p.Codes},
	}
	for _, l := range lists {
		if l.raw == nil {
			continue
		}
		if err := AddTerms(&q.Must, &q.MustNot, l.field, *l.raw); err != nil {
			return Query{}, err
		}
	}

	return q, nil
}

// startFilter bounds view_ts from below. In overlap mode an event that began
// earlier still matches while it was unfinished at start.
func startFilter(start string, overlap bool) Node {
	if !overlap {
		return Range{Field: FieldViewTS, GTE: start}
	}
	return Or{
		Range{Field: FieldViewTS, GTE: start},
		And{
			Range{Field: FieldViewTS, LT: start},
			Or{
				Range{Field: FieldFinishedTS, GTE: start},
				Not{Node: Exists{Field: FieldFinishedTS}},
			},
		},
	}
}
