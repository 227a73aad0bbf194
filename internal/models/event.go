package models

import "encoding/json"

// Document is an event document as stored, decoded without a schema.
type Document = map[string]any

// Event type identifiers.
const (
	EventTypeMOAS    = "moas"
	EventTypeEdges   = "edges"
	EventTypeDefcon  = "defcon"
	EventTypeSubMOAS = "submoas"
)

// PfxDetails holds the prefix identity of a pfx_event. moas and edges events
// carry Prefix; defcon and submoas events carry SubPfx and SuperPfx.
type PfxDetails struct {
	Prefix   json.RawMessage `json:"prefix,omitempty"`
	SubPfx   json.RawMessage `json:"sub_pfx,omitempty"`
	SuperPfx json.RawMessage `json:"super_pfx,omitempty"`
}

// EventSummary is the reduced projection of an event returned to the UI.
// Unlisted document fields are dropped when a document is decoded into it.
type EventSummary struct {
	ID             json.RawMessage   `json:"id,omitempty"`
	EventType      json.RawMessage   `json:"event_type,omitempty"`
	ViewTS         json.RawMessage   `json:"view_ts,omitempty"`
	FinishedTS     json.RawMessage   `json:"finished_ts,omitempty"`
	ASInfo         json.RawMessage   `json:"asinfo,omitempty"`
	InsertTS       json.RawMessage   `json:"insert_ts,omitempty"`
	LastModifiedTS json.RawMessage   `json:"last_modified_ts,omitempty"`
	Duration       json.RawMessage   `json:"duration,omitempty"`
	TRMetrics      json.RawMessage   `json:"tr_metrics,omitempty"`
	EventMetrics   json.RawMessage   `json:"event_metrics,omitempty"`
	Summary        json.RawMessage   `json:"summary,omitempty"`
	PfxEvents      []PfxEventSummary `json:"pfx_events"`
	Debug          struct{}          `json:"debug"`
}

// PfxEventSummary is the reduced projection of a pfx_event with the prefix
// identity promoted out of details.
type PfxEventSummary struct {
	Tags       json.RawMessage `json:"tags,omitempty"`
	FinishedTS json.RawMessage `json:"finished_ts,omitempty"`
	Inferences json.RawMessage `json:"inferences,omitempty"`
	PfxDetails
}

// UnmarshalJSON reads the kept fields and lifts the prefix identity out of
// the nested details object.
func (p *PfxEventSummary) UnmarshalJSON(b []byte) error {
	var raw struct {
		Tags       json.RawMessage `json:"tags"`
		FinishedTS json.RawMessage `json:"finished_ts"`
		Inferences json.RawMessage `json:"inferences"`
		Details    *PfxDetails     `json:"details"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = PfxEventSummary{Tags: raw.Tags, FinishedTS: raw.FinishedTS, Inferences: raw.Inferences}
	if raw.Details != nil {
		p.PfxDetails = *raw.Details
	}
	return nil
}

// SearchResponse is the /json/events envelope. Draw is always null and
// RecordsFiltered always 0, which is what the consuming table widget expects.
type SearchResponse struct {
	Data            []any  `json:"data"`
	Draw            *int   `json:"draw"`
	RecordsFiltered int    `json:"recordsFiltered"`
	RecordsTotal    int64  `json:"recordsTotal"`
	Copyright       string `json:"copyright"`
}
