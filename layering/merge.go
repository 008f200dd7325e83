package layering

import "sort"

// Write records a single mutation applied to a flat settings map.
type Write struct {
	Source  string
	Level   Level
	Key     string
	Value   any
	Removed bool
}

// Ledger accumulates writes per key so callers can trace which layer
// produced the effective value.
type Ledger struct {
	writes map[string][]Write
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{writes: map[string][]Write{}}
}

// Record appends w to the history of w.Key.
func (l *Ledger) Record(w Write) {
	if l == nil {
		return
	}
	if l.writes == nil {
		l.writes = map[string][]Write{}
	}
	l.writes[w.Key] = append(l.writes[w.Key], w)
}

// History returns the writes applied to key, oldest first.
func (l *Ledger) History(key string) []Write {
	if l == nil || len(l.writes[key]) == 0 {
		return nil
	}
	out := make([]Write, len(l.writes[key]))
	copy(out, l.writes[key])
	return out
}

// Last returns the most recent write applied to key.
func (l *Ledger) Last(key string) (Write, bool) {
	if l == nil {
		return Write{}, false
	}
	history := l.writes[key]
	if len(history) == 0 {
		return Write{}, false
	}
	return history[len(history)-1], true
}

// Overlay copies every key of src into dst, strongest wins semantics: src
// always replaces dst. Nil values in src are copied as-is; callers decide
// how to interpret them. Keys are applied in sorted order so the ledger is
// deterministic. Returns the applied keys.
func Overlay(dst map[string]any, src Source, ledger *Ledger) []string {
	keys := src.Keys()
	for _, key := range keys {
		value := src.values[key]
		dst[key] = value
		ledger.Record(Write{
			Source: src.Label(),
			Level:  src.Level,
			Key:    key,
			Value:  value,
		})
	}
	return keys
}

// Clone returns a shallow copy of values. Values themselves are opaque and
// shared; only the map is detached.
func Clone(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

// SortedKeys returns the keys of values in alphabetical order.
func SortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
