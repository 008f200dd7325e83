package unitboot

import (
	"log/slog"
	"maps"

	"github.com/goliatone/go-unitboot/registry"
)

// Option configures Merge and NewBuilder. Merge only reads the settings
// related options.
type Option func(*builderConfig)

type builderConfig struct {
	mergeConfig

	activity           activityConfig
	classLoaderService *registry.ClassLoaderService
	classLoaders       []registry.ClassLoader
	integrators        []registry.Integrator
	strategies         []registry.StrategyRegistration
	initiators         []registry.ServiceInitiator
	services           []providedService
	metadataBuilder    MetadataBuilderFactory
	runtimeBuilder     RuntimeFactoryBuilder
	schemaCoordinator  SchemaCoordinator
	guards             []Guard
	functions          []namedFunction
	programCache       ProgramCache
}

type providedService struct {
	role    string
	service any
}

func applyOptions(opts []Option) builderConfig {
	cfg := builderConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithAmbientDefaults seeds the merge with process-wide defaults, the
// weakest layer.
func WithAmbientDefaults(values map[string]any) Option {
	return func(cfg *builderConfig) {
		cfg.ambient = maps.Clone(values)
	}
}

// WithBaseline pre-populates settings after the ambient defaults and before
// the descriptor.
func WithBaseline(fn func(map[string]any)) Option {
	return func(cfg *builderConfig) {
		cfg.baseline = fn
	}
}

// WithDataSource supplies a data source programmatically. It outranks every
// configured connection setting.
func WithDataSource(ds registry.DataSource) Option {
	return func(cfg *builderConfig) {
		cfg.dataSource = ds
	}
}

// WithConfigLoader resolves legacy config file references.
func WithConfigLoader(loader ConfigLoader) Option {
	return func(cfg *builderConfig) {
		cfg.loader = loader
	}
}

// WithDiagnostics records notices into diag instead of a sink created per
// attempt.
func WithDiagnostics(diag *Diagnostics) Option {
	return func(cfg *builderConfig) {
		cfg.diag = diag
	}
}

// WithStrategySelector resolves an explicit coordinator override during a
// standalone Merge. NewBuilder uses its bootstrap registry selector.
func WithStrategySelector(selector *registry.StrategySelector) Option {
	return func(cfg *builderConfig) {
		cfg.selector = selector
	}
}

// WithLogger sets the logger used by the merge, the registries and the
// default diagnostics sink.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *builderConfig) {
		cfg.logger = logger
	}
}

// WithClassLoaderService uses service for class loading, ignoring any
// class loaders named in settings.
func WithClassLoaderService(service *registry.ClassLoaderService) Option {
	return func(cfg *builderConfig) {
		cfg.classLoaderService = service
	}
}

// WithClassLoader appends a class loader consulted after the ones named in
// settings.
func WithClassLoader(loader registry.ClassLoader) Option {
	return func(cfg *builderConfig) {
		if loader != nil {
			cfg.classLoaders = append(cfg.classLoaders, loader)
		}
	}
}

// WithIntegrators appends integrators run while the runtime registry is
// built.
func WithIntegrators(integrators ...registry.Integrator) Option {
	return func(cfg *builderConfig) {
		for _, integrator := range integrators {
			if integrator != nil {
				cfg.integrators = append(cfg.integrators, integrator)
			}
		}
	}
}

// WithStrategies registers named strategies on the bootstrap registry.
func WithStrategies(registrations ...registry.StrategyRegistration) Option {
	return func(cfg *builderConfig) {
		cfg.strategies = append(cfg.strategies, registrations...)
	}
}

// WithServiceInitiators adds initiators to the runtime registry. A later
// initiator for the connection provider role replaces the default one.
func WithServiceInitiators(initiators ...registry.ServiceInitiator) Option {
	return func(cfg *builderConfig) {
		for _, initiator := range initiators {
			if initiator != nil {
				cfg.initiators = append(cfg.initiators, initiator)
			}
		}
	}
}

// WithService binds a ready service instance in the runtime registry.
func WithService(role string, service any) Option {
	return func(cfg *builderConfig) {
		cfg.services = append(cfg.services, providedService{role: role, service: service})
	}
}

// WithMetadataBuilderFactory replaces the default metadata builder.
func WithMetadataBuilderFactory(factory MetadataBuilderFactory) Option {
	return func(cfg *builderConfig) {
		cfg.metadataBuilder = factory
	}
}

// WithRuntimeFactoryBuilder replaces the default runtime factory builder.
func WithRuntimeFactoryBuilder(builder RuntimeFactoryBuilder) Option {
	return func(cfg *builderConfig) {
		cfg.runtimeBuilder = builder
	}
}

// WithSchemaCoordinator configures the collaborator used by GenerateSchema.
func WithSchemaCoordinator(coordinator SchemaCoordinator) Option {
	return func(cfg *builderConfig) {
		cfg.schemaCoordinator = coordinator
	}
}

// WithSettingsGuard adds a guard evaluated against the merged settings.
func WithSettingsGuard(guards ...Guard) Option {
	return func(cfg *builderConfig) {
		cfg.guards = append(cfg.guards, guards...)
	}
}

// WithGuardFunction exposes fn to guard expressions under name.
func WithGuardFunction(name string, fn Function) Option {
	return func(cfg *builderConfig) {
		cfg.functions = append(cfg.functions, namedFunction{name: name, fn: fn})
	}
}

// WithProgramCache shares compiled guard programs across builders.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *builderConfig) {
		cfg.programCache = cache
	}
}
