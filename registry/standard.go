package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Startable services are started once after initiation.
type Startable interface {
	Start() error
}

// Stoppable services are stopped when their binding is released.
type Stoppable interface {
	Stop() error
}

// ServiceInitiator creates the service bound to Role from merged settings.
// Returning a nil service means the role is not applicable and no binding
// is created.
type ServiceInitiator interface {
	Role() string
	Initiate(settings map[string]any, reg *StandardRegistry) (any, error)
}

// InitiatorFunc adapts a function to ServiceInitiator.
type InitiatorFunc struct {
	ServiceRole string
	Fn          func(settings map[string]any, reg *StandardRegistry) (any, error)
}

// Role implements ServiceInitiator.
func (f InitiatorFunc) Role() string { return f.ServiceRole }

// Initiate implements ServiceInitiator.
func (f InitiatorFunc) Initiate(settings map[string]any, reg *StandardRegistry) (any, error) {
	if f.Fn == nil {
		return nil, nil
	}
	return f.Fn(settings, reg)
}

// ServiceBinding holds the live instance for a role.
type ServiceBinding struct {
	Role string

	mu      sync.RWMutex
	service any
}

// Service returns the bound instance, nil once released.
func (b *ServiceBinding) Service() any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.service
}

// SetService replaces the bound instance.
func (b *ServiceBinding) SetService(service any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.service = service
}

// StandardRegistry is the long-lived service registry built from merged
// settings. Bindings are created by initiators or registered directly.
type StandardRegistry struct {
	parent   *BootstrapRegistry
	settings map[string]any
	logger   *slog.Logger

	mu         sync.Mutex
	bindings   map[string]*ServiceBinding
	order      []string
	initiators map[string]ServiceInitiator
	destroyed  bool
}

// Parent returns the bootstrap registry this registry was built from.
func (r *StandardRegistry) Parent() *BootstrapRegistry {
	if r == nil {
		return nil
	}
	return r.parent
}

// Settings returns a copy of the settings the registry was built with.
func (r *StandardRegistry) Settings() map[string]any {
	out := make(map[string]any, len(r.settings))
	for key, value := range r.settings {
		out[key] = value
	}
	return out
}

// Binding locates the binding for role without initiating it.
func (r *StandardRegistry) Binding(role string) (*ServiceBinding, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	binding, ok := r.bindings[role]
	return binding, ok
}

// Register binds an already created service to role.
func (r *StandardRegistry) Register(role string, service any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return acquisitionError("register", role, ErrRegistryClosed)
	}
	r.bindLocked(role, service)
	return nil
}

func (r *StandardRegistry) bindLocked(role string, service any) *ServiceBinding {
	binding, ok := r.bindings[role]
	if !ok {
		binding = &ServiceBinding{Role: role}
		r.bindings[role] = binding
		r.order = append(r.order, role)
	}
	binding.SetService(service)
	return binding
}

// Service returns the live service for role, initiating and starting it on
// first use. It returns (nil, nil) when no initiator applies.
// Initiators may look up other services while running.
func (r *StandardRegistry) Service(role string) (any, error) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return nil, acquisitionError("acquire", role, ErrRegistryClosed)
	}
	if binding, ok := r.bindings[role]; ok {
		if service := binding.Service(); service != nil {
			r.mu.Unlock()
			return service, nil
		}
	}
	initiator, ok := r.initiators[role]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}

	service, err := initiator.Initiate(r.Settings(), r)
	if err != nil {
		return nil, acquisitionError("initiate", role, err)
	}
	if service == nil {
		return nil, nil
	}
	if startable, ok := service.(Startable); ok {
		if err := startable.Start(); err != nil {
			stopQuietly(service)
			return nil, acquisitionError("start", role, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		stopQuietly(service)
		return nil, acquisitionError("acquire", role, ErrRegistryClosed)
	}
	r.bindLocked(role, service)
	r.logger.Debug("service initiated", "role", role, "type", fmt.Sprintf("%T", service))
	return service, nil
}

func stopQuietly(service any) {
	if stoppable, ok := service.(Stoppable); ok {
		_ = stoppable.Stop()
	}
}

// LookupService is Service with a type assertion.
func LookupService[T any](r *StandardRegistry, role string) (T, error) {
	var zero T
	service, err := r.Service(role)
	if err != nil || service == nil {
		return zero, err
	}
	typed, ok := service.(T)
	if !ok {
		return zero, acquisitionError("acquire", role, fmt.Errorf("service %T does not implement %T", service, zero))
	}
	return typed, nil
}

// StopService stops the bound instance if it is Stoppable and clears the
// binding. The binding stays registered so it can be initiated again.
func (r *StandardRegistry) StopService(binding *ServiceBinding) error {
	if binding == nil {
		return nil
	}
	service := binding.Service()
	binding.SetService(nil)
	if stoppable, ok := service.(Stoppable); ok {
		if err := stoppable.Stop(); err != nil {
			return acquisitionError("stop", binding.Role, err)
		}
	}
	return nil
}

// Destroy stops every bound service in reverse binding order. It is
// idempotent; later calls return nil.
func (r *StandardRegistry) Destroy() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return nil
	}
	r.destroyed = true
	bindings := make([]*ServiceBinding, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		bindings = append(bindings, r.bindings[r.order[i]])
	}
	r.mu.Unlock()

	var errs []error
	for _, binding := range bindings {
		if err := r.StopService(binding); err != nil {
			errs = append(errs, err)
		}
	}
	r.logger.Debug("registry destroyed", "services", len(bindings))
	return errors.Join(errs...)
}

// Destroyed reports whether Destroy has run.
func (r *StandardRegistry) Destroyed() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// StandardRegistryBuilder assembles a StandardRegistry from merged settings.
type StandardRegistryBuilder struct {
	bootstrap  *BootstrapRegistry
	settings   map[string]any
	initiators []ServiceInitiator
	services   []providedService
	logger     *slog.Logger
}

type providedService struct {
	role    string
	service any
}

// NewStandardRegistryBuilder returns a builder parented by bootstrap.
func NewStandardRegistryBuilder(bootstrap *BootstrapRegistry) *StandardRegistryBuilder {
	return &StandardRegistryBuilder{
		bootstrap: bootstrap,
		settings:  map[string]any{},
	}
}

// ApplySettings copies settings into the builder.
func (b *StandardRegistryBuilder) ApplySettings(settings map[string]any) *StandardRegistryBuilder {
	for key, value := range settings {
		b.settings[key] = value
	}
	return b
}

// ApplySetting stores a single setting, deleting the key for nil values.
func (b *StandardRegistryBuilder) ApplySetting(key string, value any) *StandardRegistryBuilder {
	if value == nil {
		delete(b.settings, key)
		return b
	}
	b.settings[key] = value
	return b
}

// AddInitiator registers an initiator; later initiators for the same role win.
func (b *StandardRegistryBuilder) AddInitiator(initiator ServiceInitiator) *StandardRegistryBuilder {
	if initiator != nil {
		b.initiators = append(b.initiators, initiator)
	}
	return b
}

// AddService binds a ready service instance.
func (b *StandardRegistryBuilder) AddService(role string, service any) *StandardRegistryBuilder {
	b.services = append(b.services, providedService{role: role, service: service})
	return b
}

// WithLogger sets the registry logger.
func (b *StandardRegistryBuilder) WithLogger(logger *slog.Logger) *StandardRegistryBuilder {
	b.logger = logger
	return b
}

// Build creates the registry, runs the bootstrap integrators and initiates
// every registered service. Any failure destroys what was acquired so far.
func (b *StandardRegistryBuilder) Build() (*StandardRegistry, error) {
	if b.bootstrap == nil || b.bootstrap.Closed() {
		return nil, acquisitionError("build", "", ErrRegistryClosed)
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	reg := &StandardRegistry{
		parent:     b.bootstrap,
		settings:   make(map[string]any, len(b.settings)),
		logger:     logger,
		bindings:   make(map[string]*ServiceBinding),
		initiators: make(map[string]ServiceInitiator),
	}
	for key, value := range b.settings {
		reg.settings[key] = value
	}
	for _, provided := range b.services {
		reg.bindLocked(provided.role, provided.service)
	}

	roles := make([]string, 0, len(b.initiators))
	for _, initiator := range b.initiators {
		if _, seen := reg.initiators[initiator.Role()]; !seen {
			roles = append(roles, initiator.Role())
		}
		reg.initiators[initiator.Role()] = initiator
	}

	for _, integrator := range b.bootstrap.Integrators() {
		if err := integrator.Integrate(reg); err != nil {
			_ = reg.Destroy()
			return nil, acquisitionError("integrate", "", err)
		}
	}

	for _, role := range roles {
		if _, err := reg.Service(role); err != nil {
			_ = reg.Destroy()
			return nil, err
		}
	}
	return reg, nil
}
