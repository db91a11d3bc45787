package store

import (
	"encoding/json"
	"fmt"
)

// Merge applies fields on top of the JSON object doc. A nil or null doc is
// treated as an empty object.
func Merge(doc json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(doc) > 0 && string(doc) != "null" {
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, fmt.Errorf("merge into non-object: %w", err)
		}
	}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		obj[k] = b
	}
	return json.Marshal(obj)
}

// SendLatest delivers s on ch, replacing any snapshot not yet received.
// ch must have a buffer of one and a single sender.
func SendLatest(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
