package broker

import (
	"encoding/json"
	"slices"
)

// privateFields are top-level payload keys kept out of summaries. They stay
// in the broker's copy of the payload and reach the executor unchanged.
var privateFields = []string{"apiKey"}

// redact returns payload without privateFields. Payloads that are not JSON
// objects are returned as a copy.
func redact(payload json.RawMessage) json.RawMessage {
	fields, ok := objectFields(payload)
	if !ok {
		return slices.Clone(payload)
	}
	removed := false
	for _, k := range privateFields {
		if _, ok := fields[k]; ok {
			delete(fields, k)
			removed = true
		}
	}
	if !removed {
		return slices.Clone(payload)
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return out
}

// restorePrivate copies privateFields from original into an approver's
// edited payload when the edit left them out, since approvers only ever see
// the redacted form.
func restorePrivate(edited, original json.RawMessage) json.RawMessage {
	fields, ok := objectFields(edited)
	if !ok {
		return slices.Clone(edited)
	}
	orig, ok := objectFields(original)
	if !ok {
		return slices.Clone(edited)
	}
	restored := false
	for _, k := range privateFields {
		v, had := orig[k]
		if _, set := fields[k]; had && !set {
			fields[k] = v
			restored = true
		}
	}
	if !restored {
		return slices.Clone(edited)
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return slices.Clone(edited)
	}
	return out
}

func objectFields(payload json.RawMessage) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if len(payload) == 0 || json.Unmarshal(payload, &fields) != nil || fields == nil {
		return nil, false
	}
	return fields, true
}
