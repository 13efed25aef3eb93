package audit

import (
	"encoding/json"
	"fmt"
)

// Snapshot converts v into the map stored in an audit entry, keyed by the
// value's JSON field names. A nil v yields a nil map.
func Snapshot(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("snapshot of %T is not an object: %w", v, err)
	}
	return out, nil
}
