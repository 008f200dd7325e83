package unitboot

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function represents a callable exposed to guard expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the functions guard expressions may call. Every
// registry answers setting(key) and has(key) against the merged settings it
// was created for, and remembers which keys those lookups touched.
type FunctionRegistry struct {
	mu        sync.RWMutex
	settings  *MergedSettings
	functions map[string]Function
	reads     []string
	seen      map[string]struct{}
}

// NewFunctionRegistry returns a registry bound to settings. A nil settings
// value binds an empty set.
func NewFunctionRegistry(settings *MergedSettings) *FunctionRegistry {
	if settings == nil {
		settings = newMergedSettings()
	}
	r := &FunctionRegistry{
		settings:  settings,
		functions: make(map[string]Function),
		seen:      make(map[string]struct{}),
	}
	r.functions["setting"] = func(args ...any) (any, error) {
		key, err := keyArgument("setting", args)
		if err != nil {
			return nil, err
		}
		r.touch(key)
		return r.settings.Value(key), nil
	}
	r.functions["has"] = func(args ...any) (any, error) {
		key, err := keyArgument("has", args)
		if err != nil {
			return nil, err
		}
		r.touch(key)
		return r.settings.Has(key), nil
	}
	return r
}

// Register adds fn under name. Names are case-insensitive and may not
// replace setting, has or an earlier registration.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("unitboot: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("unitboot: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("unitboot: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("unitboot: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("unitboot: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeysRead returns the setting keys looked up since the last reset, in first
// read order.
func (r *FunctionRegistry) KeysRead() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.reads...)
}

func (r *FunctionRegistry) resetReads() {
	r.mu.Lock()
	r.reads = nil
	r.seen = make(map[string]struct{})
	r.mu.Unlock()
}

func (r *FunctionRegistry) touch(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	r.reads = append(r.reads, key)
}

// identity distinguishes registries in program cache keys; programs that
// bind functions at compile time must not be shared across registries.
func (r *FunctionRegistry) identity() string {
	return fmt.Sprintf("%p", r)
}

func keyArgument(fn string, args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("unitboot: %s expects one argument, got %d", fn, len(args))
	}
	key, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("unitboot: %s expects a string key, got %T", fn, args[0])
	}
	return key, nil
}
