package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Class is a loadable type handle: a name plus the constructor producing
// instances of it.
type Class struct {
	Name string
	New  func() (any, error)
}

// Instantiate builds a new instance of the class.
func (c Class) Instantiate() (any, error) {
	if c.New == nil {
		return nil, &ClassLoadingError{Name: c.Name, Err: errors.New("class has no constructor")}
	}
	instance, err := c.New()
	if err != nil {
		return nil, &ClassLoadingError{Name: c.Name, Err: err}
	}
	return instance, nil
}

// ClassLoader resolves class names to handles.
type ClassLoader interface {
	LoadClass(name string) (Class, bool)
}

// ServiceLocator is implemented by loaders that can enumerate the
// implementations registered for a service role.
type ServiceLocator interface {
	ServiceImplementations(role string) []string
}

// TypeLoader is an in-process ClassLoader populated by registration.
type TypeLoader struct {
	mu       sync.RWMutex
	classes  map[string]Class
	services map[string][]string
}

// NewTypeLoader constructs an empty loader.
func NewTypeLoader() *TypeLoader {
	return &TypeLoader{
		classes:  make(map[string]Class),
		services: make(map[string][]string),
	}
}

// Register stores ctor under name guarding against duplicates.
func (l *TypeLoader) Register(name string, ctor func() (any, error)) error {
	if name == "" {
		return fmt.Errorf("unitboot: class name must not be empty")
	}
	if ctor == nil {
		return fmt.Errorf("unitboot: class %q constructor is nil", name)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.classes[name]; exists {
		return fmt.Errorf("unitboot: class %q already registered", name)
	}
	l.classes[name] = Class{Name: name, New: ctor}
	return nil
}

// RegisterService records names as implementations of role.
func (l *TypeLoader) RegisterService(role string, names ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services[role] = append(l.services[role], names...)
}

// LoadClass implements ClassLoader.
func (l *TypeLoader) LoadClass(name string) (Class, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	class, ok := l.classes[name]
	return class, ok
}

// ServiceImplementations implements ServiceLocator.
func (l *TypeLoader) ServiceImplementations(role string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.services[role]...)
}

// Names returns registered class names sorted alphabetically.
func (l *TypeLoader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.classes))
	for name := range l.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassLoaderService aggregates loaders and answers class lookups in
// loader order.
type ClassLoaderService struct {
	loaders []ClassLoader
}

// NewClassLoaderService builds a service over loaders, skipping nils.
func NewClassLoaderService(loaders ...ClassLoader) *ClassLoaderService {
	service := &ClassLoaderService{}
	for _, loader := range loaders {
		if loader != nil {
			service.loaders = append(service.loaders, loader)
		}
	}
	return service
}

// Loaders returns the aggregated loaders in lookup order.
func (s *ClassLoaderService) Loaders() []ClassLoader {
	if s == nil {
		return nil
	}
	return append([]ClassLoader(nil), s.loaders...)
}

// ClassForName resolves name against every loader in order.
func (s *ClassLoaderService) ClassForName(name string) (Class, error) {
	if s != nil {
		for _, loader := range s.loaders {
			if class, ok := loader.LoadClass(name); ok {
				return class, nil
			}
		}
	}
	return Class{}, &ClassLoadingError{Name: name}
}

// LoadServices instantiates every implementation registered for role across
// all loaders and asserts each to T. Names are deduplicated in first-seen order.
func LoadServices[T any](s *ClassLoaderService, role string) ([]T, error) {
	if s == nil {
		return nil, nil
	}
	seen := map[string]bool{}
	var out []T
	for _, loader := range s.loaders {
		locator, ok := loader.(ServiceLocator)
		if !ok {
			continue
		}
		for _, name := range locator.ServiceImplementations(role) {
			if seen[name] {
				continue
			}
			seen[name] = true
			instance, err := LoadInstance[T](s, name)
			if err != nil {
				return nil, err
			}
			out = append(out, instance)
		}
	}
	return out, nil
}
