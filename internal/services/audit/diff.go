package audit

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Change is one changed key. HasFrom is false when the key did not exist before.
type Change struct {
	From    any  `json:"from,omitempty"`
	To      any  `json:"to"`
	HasFrom bool `json:"-"`
}

// MarshalJSON omits "from" for added keys and keeps an explicit null otherwise.
func (c Change) MarshalJSON() ([]byte, error) {
	if !c.HasFrom {
		return json.Marshal(struct {
			To any `json:"to"`
		}{c.To})
	}
	return json.Marshal(struct {
		From any `json:"from"`
		To   any `json:"to"`
	}{c.From, c.To})
}

// Diff returns the keys of newValues that are absent from or different in
// oldValues. A nil oldValues reports every key of newValues as added.
// Keys only present in oldValues are not reported.
func Diff(oldValues, newValues map[string]any) map[string]Change {
	changes := make(map[string]Change)
	for k, to := range newValues {
		from, ok := oldValues[k]
		if !ok {
			changes[k] = Change{To: to}
			continue
		}
		if !equalValues(from, to) {
			changes[k] = Change{From: from, To: to, HasFrom: true}
		}
	}
	return changes
}

// RedactedDiff computes Diff on the raw snapshots and then masks both sides of
// every sensitive key, so a changed secret is visible as a change without
// exposing either value.
func RedactedDiff(oldValues, newValues map[string]any) map[string]Change {
	changes := Diff(oldValues, newValues)
	for k, c := range changes {
		if IsSensitive(k) {
			if c.HasFrom {
				c.From = RedactedMarker
			}
			c.To = RedactedMarker
		} else {
			if c.HasFrom {
				c.From = redactValue(c.From)
			}
			c.To = redactValue(c.To)
		}
		changes[k] = c
	}
	return changes
}

// ChangedKeys returns the sorted keys of changes.
func ChangedKeys(changes map[string]Change) []string {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// equalValues treats values as equal when they are deeply equal or encode to
// the same JSON, so an int from a struct matches a float64 read back from jsonb.
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}
