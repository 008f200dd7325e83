package unitboot

import (
	"context"
	"fmt"

	"github.com/goliatone/go-unitboot/keys"
	"github.com/goliatone/go-unitboot/layering"
	"github.com/goliatone/go-unitboot/registry"
)

// RoleRuntimeFactoryObserver is the strategy role for configured observers.
const RoleRuntimeFactoryObserver = "runtime-factory-observer"

// Build runs phase 2 and returns the runtime factory. A builder builds at
// most once; a failed build releases everything phase 1 acquired.
func (b *Builder) Build(ctx context.Context) (RuntimeFactory, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return nil, ErrAlreadyBuilt
	}
	if b.closed {
		return nil, ErrBuilderClosed
	}
	b.consumed = true

	factory, err := b.buildRuntimeFactory(ctx)
	if err != nil {
		b.fail(err)
		return nil, err
	}
	b.enter(PhaseBuilt)
	b.logger.Info("runtime factory built", "attempt", b.diag.AttemptID(), "name", factory.Name())
	return factory, nil
}

func (b *Builder) buildRuntimeFactory(ctx context.Context) (RuntimeFactory, error) {
	metadata, err := b.metadataLocked(ctx)
	if err != nil {
		return nil, err
	}

	req := RuntimeFactoryRequest{
		Metadata:              metadata,
		Registry:              b.registry,
		ValidatorFactory:      b.validatorFactory,
		JTATransactionAccess:  b.readBool(keys.AllowJTATransactionAccess, false),
		RefreshDetachedEntity: b.readBool(keys.AllowRefreshDetachedEntity, false),
	}
	if value := b.settings.remove(keys.SessionFactoryObserver, "bootstrap/observer", layering.LevelNormalized); value != nil {
		observer, err := registry.SelectStrategy[RuntimeFactoryObserver](b.bootstrap.StrategySelector(), RoleRuntimeFactoryObserver, value)
		if err != nil {
			return nil, &ConfigurationError{Unit: b.unit, Key: keys.SessionFactoryObserver, Value: value, Reason: "cannot resolve runtime factory observer", Err: err}
		}
		req.Observers = append(req.Observers, observer)
	}
	req.Observers = append(req.Observers, registryCloser{registry: b.registry, diag: b.diag})
	req.Settings = b.settings.Map()

	builder := b.cfg.runtimeBuilder
	if builder == nil {
		builder = DefaultRuntimeFactoryBuilder()
	}
	factory, err := builder.BuildRuntimeFactory(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("unitboot: unable to build runtime factory for unit %s: %w", b.unit, err)
	}
	return factory, nil
}

// GenerateSchema runs the schema coordinator against the completed metadata.
// The builder is released afterwards whatever the outcome.
func (b *Builder) GenerateSchema(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return ErrAlreadyBuilt
	}
	if b.closed {
		return ErrBuilderClosed
	}
	b.consumed = true
	defer b.release()

	if b.cfg.schemaCoordinator == nil {
		return ErrNoSchemaCoordinator
	}
	metadata, err := b.metadataLocked(ctx)
	if err != nil {
		return err
	}
	if err := b.cfg.schemaCoordinator.Process(ctx, metadata, b.registry, b.settings.Map()); err != nil {
		return fmt.Errorf("unitboot: error performing schema management for unit %s: %w", b.unit, err)
	}
	return nil
}

// Cancel releases a builder that will not be built. It does nothing once a
// runtime factory exists; closing the factory releases the registries.
func (b *Builder) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.phase == PhaseBuilt {
		return
	}
	b.release()
}

// WithValidatorFactory replaces the validator factory handed to phase 2.
func (b *Builder) WithValidatorFactory(factory any) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validatorFactory = factory
	return b
}

// ValidatorFactory returns the validator factory handed to phase 2.
func (b *Builder) ValidatorFactory() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validatorFactory
}

// Settings returns the merged settings.
func (b *Builder) Settings() *MergedSettings {
	return b.settings
}

// Phase returns the current pipeline state.
func (b *Builder) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Diagnostics returns the notices sink of this attempt.
func (b *Builder) Diagnostics() *Diagnostics {
	return b.diag
}

// Registry returns the runtime registry.
func (b *Builder) Registry() *registry.StandardRegistry {
	return b.registry
}
