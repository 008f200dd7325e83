package layering

import (
	"fmt"
	"sort"
)

// Level identifies the precedence of a settings source. Higher levels
// override lower levels when layering.
type Level int

const (
	// LevelUnknown guards against misconfiguration so call sites can detect
	// missing metadata.
	LevelUnknown Level = iota
	// LevelAmbient represents the weakest layer (process-wide defaults).
	LevelAmbient
	// LevelBaseline represents values pre-populated by internal tooling.
	LevelBaseline
	// LevelDescriptor represents properties declared by the hosting
	// environment's descriptor.
	LevelDescriptor
	// LevelConfigFile represents the contents of a legacy config file.
	LevelConfigFile
	// LevelNormalized represents values written by precedence resolvers.
	LevelNormalized
	// LevelIntegration represents overrides passed by the embedding
	// application. Always applied last.
	LevelIntegration
)

func (l Level) String() string {
	switch l {
	case LevelAmbient:
		return "ambient"
	case LevelBaseline:
		return "baseline"
	case LevelDescriptor:
		return "descriptor"
	case LevelConfigFile:
		return "config-file"
	case LevelNormalized:
		return "normalized"
	case LevelIntegration:
		return "integration"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string representation into the corresponding
// Level. Returns LevelUnknown for unrecognised values.
func ParseLevel(value string) Level {
	switch value {
	case "ambient", "AMBIENT":
		return LevelAmbient
	case "baseline", "BASELINE":
		return LevelBaseline
	case "descriptor", "DESCRIPTOR":
		return LevelDescriptor
	case "config-file", "CONFIG_FILE":
		return LevelConfigFile
	case "normalized", "NORMALIZED":
		return LevelNormalized
	case "integration", "INTEGRATION":
		return LevelIntegration
	default:
		return LevelUnknown
	}
}

// Source is a named origin of key/value pairs. A captured source is
// read-only: the values map is detached from the caller's map.
type Source struct {
	Name   string
	Level  Level
	values map[string]any
}

// Capture snapshots values into a read-only Source. Keys with nil values are
// kept so later layering can interpret them as removals.
func Capture(name string, level Level, values map[string]any) Source {
	return Source{
		Name:   name,
		Level:  level,
		values: Clone(values),
	}
}

// Lookup returns the value stored under key and whether the key is present.
func (s Source) Lookup(key string) (any, bool) {
	value, ok := s.values[key]
	return value, ok
}

// Get returns the value stored under key or nil.
func (s Source) Get(key string) any {
	return s.values[key]
}

// Len returns the number of keys in the source.
func (s Source) Len() int {
	return len(s.values)
}

// Keys returns the source keys sorted alphabetically.
func (s Source) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a detached copy of the source values.
func (s Source) Values() map[string]any {
	return Clone(s.values)
}

// Label returns a human readable identifier such as "descriptor/orders".
func (s Source) Label() string {
	if s.Name == "" {
		return s.Level.String()
	}
	return fmt.Sprintf("%s/%s", s.Level, s.Name)
}
