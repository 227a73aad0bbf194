package events

import (
	"bytes"
	"encoding/json"

	"github.com/grip-observatory/observatory-api/internal/models"
)

// promotedFields are copied from a pfx_event's details to its top level.
var promotedFields = []string{"prefix", "sub_pfx", "super_pfx"}

// Reduce decodes src into the UI projection, dropping every field outside
// the allow-list.
func Reduce(src json.RawMessage) (*models.EventSummary, error) {
	var ev models.EventSummary
	if err := json.Unmarshal(src, &ev); err != nil {
		return nil, err
	}
	if ev.PfxEvents == nil {
		ev.PfxEvents = []models.PfxEventSummary{}
	}
	return &ev, nil
}

// Full decodes src unchanged and records the partition it came from under _esid.
func Full(src json.RawMessage, index string) (models.Document, error) {
	doc, err := decode(src)
	if err != nil {
		return nil, err
	}
	doc["_esid"] = index
	return doc, nil
}

// PromotePfxFields copies details.prefix, details.sub_pfx and
// details.super_pfx onto each pfx_event of doc, in place.
func PromotePfxFields(doc models.Document) {
	pfxEvents, _ := doc["pfx_events"].([]any)
	for _, pe := range pfxEvents {
		pfx, ok := pe.(map[string]any)
		if !ok {
			continue
		}
		details, ok := pfx["details"].(map[string]any)
		if !ok {
			continue
		}
		for _, f := range promotedFields {
			if v, ok := details[f]; ok {
				pfx[f] = v
			}
		}
	}
}

func decode(src json.RawMessage) (models.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()
	var doc models.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = models.Document{}
	}
	return doc, nil
}
