package registry

import (
	"sync"
)

// Integrator contributes services to a standard registry as it is built.
type Integrator interface {
	Integrate(*StandardRegistry) error
}

// IntegratorFunc adapts a function to Integrator.
type IntegratorFunc func(*StandardRegistry) error

// Integrate implements Integrator.
func (f IntegratorFunc) Integrate(reg *StandardRegistry) error {
	if f == nil {
		return nil
	}
	return f(reg)
}

// IntegratorProvider supplies integrators from configuration.
type IntegratorProvider interface {
	Integrators() []Integrator
}

// BootstrapRegistry is the minimal context available before settings are
// merged: class loading, integrators and the strategy selector.
type BootstrapRegistry struct {
	mu           sync.RWMutex
	classLoading *ClassLoaderService
	integrators  []Integrator
	selector     *StrategySelector
	closed       bool
}

// ClassLoading returns the class-loading service.
func (r *BootstrapRegistry) ClassLoading() *ClassLoaderService {
	if r == nil {
		return nil
	}
	return r.classLoading
}

// Integrators returns the registered integrators in application order.
func (r *BootstrapRegistry) Integrators() []Integrator {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Integrator(nil), r.integrators...)
}

// StrategySelector returns the strategy selector.
func (r *BootstrapRegistry) StrategySelector() *StrategySelector {
	if r == nil {
		return nil
	}
	return r.selector
}

// Close releases the registry. It is safe to call more than once.
func (r *BootstrapRegistry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.integrators = nil
}

// Closed reports whether Close has been called.
func (r *BootstrapRegistry) Closed() bool {
	if r == nil {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// BootstrapRegistryBuilder assembles a BootstrapRegistry.
type BootstrapRegistryBuilder struct {
	service       *ClassLoaderService
	integrators   []Integrator
	registrations []StrategyRegistration
}

// NewBootstrapRegistryBuilder returns an empty builder.
func NewBootstrapRegistryBuilder() *BootstrapRegistryBuilder {
	return &BootstrapRegistryBuilder{}
}

// ApplyClassLoaderService sets the class-loading service. Without one the
// registry gets an empty service.
func (b *BootstrapRegistryBuilder) ApplyClassLoaderService(service *ClassLoaderService) *BootstrapRegistryBuilder {
	b.service = service
	return b
}

// ApplyIntegrator appends an integrator.
func (b *BootstrapRegistryBuilder) ApplyIntegrator(integrator Integrator) *BootstrapRegistryBuilder {
	if integrator != nil {
		b.integrators = append(b.integrators, integrator)
	}
	return b
}

// ApplyStrategy records a named strategy registration.
func (b *BootstrapRegistryBuilder) ApplyStrategy(registration StrategyRegistration) *BootstrapRegistryBuilder {
	b.registrations = append(b.registrations, registration)
	return b
}

// Build creates the registry.
func (b *BootstrapRegistryBuilder) Build() (*BootstrapRegistry, error) {
	service := b.service
	if service == nil {
		service = NewClassLoaderService()
	}
	selector := NewStrategySelector(service)
	for _, registration := range b.registrations {
		if err := selector.Register(registration); err != nil {
			return nil, acquisitionError("build", "bootstrap-registry", err)
		}
	}
	return &BootstrapRegistry{
		classLoading: service,
		integrators:  append([]Integrator(nil), b.integrators...),
		selector:     selector,
	}, nil
}
