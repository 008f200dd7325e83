package unitboot

import (
	"fmt"
	"sync"

	"github.com/goliatone/go-unitboot/layering"
)

// CacheRegionKind distinguishes entity and collection cache declarations.
type CacheRegionKind string

const (
	CacheRegionEntity     CacheRegionKind = "entity"
	CacheRegionCollection CacheRegionKind = "collection"
)

// CacheRegionDefinition maps an entity or collection role to a second-level
// cache usage policy.
type CacheRegionDefinition struct {
	Kind        CacheRegionKind
	Role        string
	Usage       string
	Region      string
	IncludeLazy bool
}

// MergedSettings is the flattened configuration view produced by Merge.
// Values are never nil: removing a key makes it absent. Reads are safe from
// multiple goroutines; writes happen while merging and, once sealed, only
// through the pipeline's internal bookkeeping.
type MergedSettings struct {
	mu      sync.RWMutex
	values  map[string]any
	regions []CacheRegionDefinition
	ledger  *layering.Ledger
	sealed  bool

	jtaCoordinator bool
}

func newMergedSettings() *MergedSettings {
	return &MergedSettings{
		values: map[string]any{},
		ledger: layering.NewLedger(),
	}
}

// Get returns the value stored under key.
func (s *MergedSettings) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Value returns the value stored under key or nil.
func (s *MergedSettings) Value(key string) any {
	value, _ := s.Get(key)
	return value
}

// String returns the value under key formatted as a string, "" when absent.
func (s *MergedSettings) String(key string) string {
	value, ok := s.Get(key)
	if !ok {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return fmt.Sprint(value)
}

// Has reports whether key is present.
func (s *MergedSettings) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of keys.
func (s *MergedSettings) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Keys returns the keys in alphabetical order.
func (s *MergedSettings) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return layering.SortedKeys(s.values)
}

// Map returns a detached copy of the settings.
func (s *MergedSettings) Map() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return layering.Clone(s.values)
}

// CacheRegions returns the cache region declarations in discovery order.
func (s *MergedSettings) CacheRegions() []CacheRegionDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CacheRegionDefinition(nil), s.regions...)
}

// JTACoordinator reports whether the resolved transaction coordinator is
// known to be JTA.
func (s *MergedSettings) JTACoordinator() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jtaCoordinator
}

// Trace returns every write applied to key, oldest first.
func (s *MergedSettings) Trace(key string) []layering.Write {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.History(key)
}

// Source returns the label of the layer that last wrote key, "" when the key
// was never written.
func (s *MergedSettings) Source(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last, ok := s.ledger.Last(key)
	if !ok {
		return ""
	}
	return last.Source
}

// Level returns the precedence level of the layer that last wrote key,
// layering.LevelUnknown when the key was never written.
func (s *MergedSettings) Level(key string) layering.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last, ok := s.ledger.Last(key)
	if !ok {
		return layering.LevelUnknown
	}
	return last.Level
}

// Set stores value under key as an integration-level write. A nil value
// removes the key. Set fails once the settings are sealed.
func (s *MergedSettings) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrSettingsSealed
	}
	if value == nil {
		s.removeLocked(key, layering.LevelIntegration.String(), layering.LevelIntegration)
		return nil
	}
	s.putLocked(key, value, layering.LevelIntegration.String(), layering.LevelIntegration)
	return nil
}

// Seal makes the settings read-only for Set.
func (s *MergedSettings) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (s *MergedSettings) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

func (s *MergedSettings) put(key string, value any, source string, level layering.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		s.removeLocked(key, source, level)
		return
	}
	s.putLocked(key, value, source, level)
}

func (s *MergedSettings) putLocked(key string, value any, source string, level layering.Level) {
	s.values[key] = value
	s.ledger.Record(layering.Write{Source: source, Level: level, Key: key, Value: value})
}

// remove deletes key and returns the removed value.
func (s *MergedSettings) remove(key string, source string, level layering.Level) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(key, source, level)
}

func (s *MergedSettings) removeLocked(key string, source string, level layering.Level) any {
	value, ok := s.values[key]
	if !ok {
		return nil
	}
	delete(s.values, key)
	s.ledger.Record(layering.Write{Source: source, Level: level, Key: key, Removed: true})
	return value
}

// overlay copies src over the settings, nil values included; null removal
// happens at the end of the merge.
func (s *MergedSettings) overlay(src layering.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	layering.Overlay(s.values, src, s.ledger)
}

// rawValues exposes the live map to the merge while it still owns the
// settings exclusively.
func (s *MergedSettings) rawValues() map[string]any {
	return s.values
}

func (s *MergedSettings) addCacheRegion(def CacheRegionDefinition) {
	s.mu.Lock()
	s.regions = append(s.regions, def)
	s.mu.Unlock()
}

func (s *MergedSettings) setJTACoordinator(jta bool) {
	s.mu.Lock()
	s.jtaCoordinator = jta
	s.mu.Unlock()
}
