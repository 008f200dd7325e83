package registry

import (
	"fmt"
	"sync"
)

// LoadInstance resolves a loadable strategy value into an instance of T. The
// value may already be a T, a Class (or *Class) handle, or a class name
// resolved through the class-loading service.
func LoadInstance[T any](s *ClassLoaderService, value any) (T, error) {
	var zero T
	switch v := value.(type) {
	case nil:
		return zero, fmt.Errorf("unitboot: cannot load %T from nil", zero)
	case T:
		return v, nil
	case Class:
		return instantiateAs[T](v)
	case *Class:
		if v == nil {
			return zero, fmt.Errorf("unitboot: cannot load %T from nil class", zero)
		}
		return instantiateAs[T](*v)
	case string:
		class, err := s.ClassForName(v)
		if err != nil {
			return zero, err
		}
		return instantiateAs[T](class)
	default:
		return zero, fmt.Errorf("unitboot: value of type %T is not an instance, class or class name for %T", value, zero)
	}
}

func instantiateAs[T any](class Class) (T, error) {
	var zero T
	instance, err := class.Instantiate()
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &ClassLoadingError{Name: class.Name, Err: fmt.Errorf("instance %T does not implement %T", instance, zero)}
	}
	return typed, nil
}

// StrategyRegistration binds a short strategy name to a constructor for a role.
type StrategyRegistration struct {
	Role string
	Name string
	New  func() (any, error)
}

// StrategyRegistrationProvider contributes strategy registrations.
type StrategyRegistrationProvider interface {
	StrategyRegistrations() []StrategyRegistration
}

// StrategySelector resolves strategy references by role, preferring
// registered short names and falling back to class loading.
type StrategySelector struct {
	mu           sync.RWMutex
	classLoading *ClassLoaderService
	strategies   map[string]map[string]func() (any, error)
}

// NewStrategySelector constructs a selector backed by classLoading.
func NewStrategySelector(classLoading *ClassLoaderService) *StrategySelector {
	return &StrategySelector{
		classLoading: classLoading,
		strategies:   make(map[string]map[string]func() (any, error)),
	}
}

// Register stores a strategy constructor; later registrations replace
// earlier ones for the same role and name.
func (s *StrategySelector) Register(registration StrategyRegistration) error {
	if registration.Role == "" || registration.Name == "" {
		return fmt.Errorf("unitboot: strategy registration needs role and name")
	}
	if registration.New == nil {
		return fmt.Errorf("unitboot: strategy %s/%s constructor is nil", registration.Role, registration.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byName := s.strategies[registration.Role]
	if byName == nil {
		byName = make(map[string]func() (any, error))
		s.strategies[registration.Role] = byName
	}
	byName[registration.Name] = registration.New
	return nil
}

// Registered reports whether a named strategy exists for role.
func (s *StrategySelector) Registered(role, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.strategies[role][name]
	return ok
}

// SelectStrategy resolves value for role into a T.
func SelectStrategy[T any](s *StrategySelector, role string, value any) (T, error) {
	if name, ok := value.(string); ok && s != nil {
		s.mu.RLock()
		ctor := s.strategies[role][name]
		s.mu.RUnlock()
		if ctor != nil {
			return instantiateAs[T](Class{Name: role + "/" + name, New: ctor})
		}
	}
	var classLoading *ClassLoaderService
	if s != nil {
		classLoading = s.classLoading
	}
	return LoadInstance[T](classLoading, value)
}
