package unitboot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-unitboot/cfgfile"
	"github.com/goliatone/go-unitboot/keys"
	"github.com/goliatone/go-unitboot/layering"
	"github.com/goliatone/go-unitboot/registry"
)

// Service roles discovered through class loading.
const (
	RoleTypeContributor            = "type-contributor"
	RoleMetadataBuilderContributor = "metadata-builder-contributor"
)

// Phase is a state of the bootstrap pipeline.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseBootstrapRegistryBuilt
	PhaseSettingsMerged
	PhaseRuntimeRegistryBuilt
	PhaseMetadataPrepared
	PhaseEnhancementDiscoveryApplied
	PhaseMetadataBuilderReady
	PhaseBuilt
	PhaseFailed
	PhaseCleanedUp
)

var phaseNames = [...]string{
	PhaseInit:                        "init",
	PhaseBootstrapRegistryBuilt:      "bootstrap-registry-built",
	PhaseSettingsMerged:              "settings-merged",
	PhaseRuntimeRegistryBuilt:        "runtime-registry-built",
	PhaseMetadataPrepared:            "metadata-prepared",
	PhaseEnhancementDiscoveryApplied: "enhancement-discovery-applied",
	PhaseMetadataBuilderReady:        "metadata-builder-ready",
	PhaseBuilt:                       "built",
	PhaseFailed:                      "failed",
	PhaseCleanedUp:                   "cleaned-up",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
	return phaseNames[p]
}

// Builder holds a persistence unit that completed phase 1 and is ready to
// build its runtime factory.
type Builder struct {
	mu sync.Mutex

	descriptor *Descriptor
	cfg        builderConfig
	diag       *Diagnostics
	logger     *slog.Logger
	unit       string

	phase     Phase
	bootstrap *registry.BootstrapRegistry
	registry  *registry.StandardRegistry
	settings  *MergedSettings
	config    *cfgfile.Config

	request          *MetadataRequest
	metadataBuilder  MetadataBuilder
	metadata         Metadata
	validatorFactory any

	consumed bool
	closed   bool
}

// NewBuilder runs phase 1 for descriptor: it builds the bootstrap registry,
// merges settings, builds the runtime registry and prepares metadata. On
// failure everything acquired is released and the original error returned.
func NewBuilder(descriptor *Descriptor, overrides map[string]any, opts ...Option) (*Builder, error) {
	cfg := applyOptions(opts)
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Builder{
		descriptor: descriptor,
		cfg:        cfg,
		diag:       cfg.diagnostics(),
		unit:       descriptor.name(),
	}
	b.logger = cfg.logger.With("unit", b.unit)
	b.diag.setUnit(b.unit)
	b.enter(PhaseInit)

	steps := []struct {
		next Phase
		run  func() error
	}{
		{PhaseBootstrapRegistryBuilt, func() error { return b.buildBootstrapRegistry(overrides) }},
		{PhaseSettingsMerged, func() error { return b.mergeSettings(overrides) }},
		{PhaseRuntimeRegistryBuilt, b.buildRuntimeRegistry},
		{PhaseMetadataPrepared, b.prepareMetadata},
		{PhaseEnhancementDiscoveryApplied, b.applyEnhancement},
		{PhaseMetadataBuilderReady, b.finishPhaseOne},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			b.fail(err)
			return nil, err
		}
		b.enter(step.next)
	}
	return b, nil
}

func (b *Builder) enter(phase Phase) {
	b.phase = phase
	b.diag.PhaseEntered(phase)
}

// fail unwinds a phase 1 failure.
func (b *Builder) fail(err error) {
	b.diag.BootstrapFailed(b.phase, err)
	b.phase = PhaseFailed
	b.release()
}

// release stops the connection provider and tears the registries down.
func (b *Builder) release() {
	b.closed = true
	if b.registry != nil {
		Cleanup(b.registry, b.diag)
		if err := b.registry.Destroy(); err != nil {
			b.diag.CleanupFailed("registry", err)
		}
	}
	b.bootstrap.Close()
	b.enter(PhaseCleanedUp)
}

func (b *Builder) buildBootstrapRegistry(overrides map[string]any) error {
	integration := maps.Clone(b.descriptor.properties())
	if integration == nil {
		integration = map[string]any{}
	}
	maps.Copy(integration, overrides)

	builder := registry.NewBootstrapRegistryBuilder()
	service := b.cfg.classLoaderService
	if service == nil {
		var loaders []registry.ClassLoader
		if b.descriptor != nil && b.descriptor.ClassLoader != nil {
			loaders = append(loaders, b.descriptor.ClassLoader)
		}
		loaders = append(loaders, b.cfg.classLoaders...)
		configured, err := classLoaders(integration[keys.ClassLoaders])
		if err != nil {
			return configError(b.unit, keys.ClassLoaders, integration[keys.ClassLoaders], err.Error())
		}
		service = registry.NewClassLoaderService(append(loaders, configured...)...)
	}
	builder.ApplyClassLoaderService(service)

	if value := integration[keys.IntegratorProvider]; value != nil {
		provider, err := registry.LoadInstance[registry.IntegratorProvider](service, value)
		if err != nil {
			return &ConfigurationError{Unit: b.unit, Key: keys.IntegratorProvider, Value: value, Reason: "cannot load integrator provider", Err: err}
		}
		for _, integrator := range provider.Integrators() {
			builder.ApplyIntegrator(integrator)
		}
	}
	for _, integrator := range b.cfg.integrators {
		builder.ApplyIntegrator(integrator)
	}

	for _, registration := range builtinStrategies() {
		builder.ApplyStrategy(registration)
	}
	if value := integration[keys.StrategyRegistrationProviders]; value != nil {
		for _, item := range listOf(value) {
			provider, err := registry.LoadInstance[registry.StrategyRegistrationProvider](service, item)
			if err != nil {
				return &ConfigurationError{Unit: b.unit, Key: keys.StrategyRegistrationProviders, Value: item, Reason: "cannot load strategy registration provider", Err: err}
			}
			for _, registration := range provider.StrategyRegistrations() {
				builder.ApplyStrategy(registration)
			}
		}
	}
	for _, registration := range b.cfg.strategies {
		builder.ApplyStrategy(registration)
	}

	bootstrap, err := builder.Build()
	if err != nil {
		return err
	}
	b.bootstrap = bootstrap
	b.logger.Debug("bootstrap registry built", "class_loaders", len(service.Loaders()), "integrators", len(bootstrap.Integrators()))
	return nil
}

func (b *Builder) mergeSettings(overrides map[string]any) error {
	mcfg := b.cfg.mergeConfig
	mcfg.diag = b.diag
	mcfg.logger = b.cfg.logger
	mcfg.selector = b.bootstrap.StrategySelector()
	result, err := merge(b.descriptor, overrides, mcfg)
	if err != nil {
		return err
	}
	b.settings = result.settings
	b.config = result.config

	if isTrue(b.settings.Value(keys.FlushBeforeCompletion)) {
		b.diag.Ignored(keys.FlushBeforeCompletion, "false")
		b.settings.put(keys.FlushBeforeCompletion, "false", "bootstrap/flush-before-completion", layering.LevelNormalized)
	}

	if len(b.cfg.guards) > 0 {
		functions := NewFunctionRegistry(b.settings)
		for _, entry := range b.cfg.functions {
			if err := functions.Register(entry.name, entry.fn); err != nil {
				return err
			}
		}
		runner := &guardRunner{cache: b.cfg.programCache, logger: b.logger}
		if err := runner.run(GuardContext{
			Unit:      b.unit,
			Settings:  b.settings.Map(),
			Functions: functions,
		}, b.cfg.guards); err != nil {
			return err
		}
	}

	b.settings.Seal()
	return nil
}

func (b *Builder) buildRuntimeRegistry() error {
	builder := registry.NewStandardRegistryBuilder(b.bootstrap).
		ApplySettings(b.settings.Map()).
		WithLogger(b.cfg.logger).
		AddInitiator(registry.ConnectionProviderInitiator{})
	for _, initiator := range b.cfg.initiators {
		builder.AddInitiator(initiator)
	}
	for _, provided := range b.cfg.services {
		builder.AddService(provided.role, provided.service)
	}
	reg, err := builder.Build()
	if err != nil {
		return err
	}
	b.registry = reg
	return nil
}

func (b *Builder) prepareMetadata() error {
	factory := b.cfg.metadataBuilder
	if factory == nil {
		factory = NewMappingMetadataBuilder
	}
	metadataBuilder, err := factory(b.registry)
	if err != nil {
		return err
	}
	b.metadataBuilder = metadataBuilder

	req := &MetadataRequest{
		Unit:             b.unit,
		Settings:         b.settings,
		Registry:         b.registry,
		CacheRegions:     b.settings.CacheRegions(),
		ScannerDiscovery: b.settings.String(keys.ScannerDiscovery),
	}
	if b.descriptor != nil {
		req.AnnotatedClasses = append(req.AnnotatedClasses, b.descriptor.ManagedClasses...)
		req.Resources = append(req.Resources, b.descriptor.MappingFiles...)
		req.TempClassLoader = b.descriptor.TempClassLoader
	}
	if b.config != nil {
		req.ConfigMappings = append(req.ConfigMappings, b.config.Mappings...)
	}
	if aware, ok := metadataBuilder.(TempClassLoaderAware); ok && req.TempClassLoader != nil {
		aware.ApplyTempClassLoader(req.TempClassLoader)
	}

	if loaded := b.settings.remove(keys.LoadedClasses, "bootstrap/metadata", layering.LevelNormalized); loaded != nil {
		for _, item := range listOf(loaded) {
			req.LoadedClasses = append(req.LoadedClasses, item)
			if name := className(item); name != "" {
				req.AnnotatedClasses = append(req.AnnotatedClasses, name)
			}
		}
	}
	if hbm := b.settings.remove(keys.HbmXMLFiles, "bootstrap/metadata", layering.LevelNormalized); hbm != nil {
		req.Resources = append(req.Resources, splitList(hbm)...)
	}
	if orm := b.settings.remove(keys.OrmXMLFiles, "bootstrap/metadata", layering.LevelNormalized); orm != nil {
		req.Resources = append(req.Resources, splitList(orm)...)
	}

	classLoading := b.bootstrap.ClassLoading()
	if value := b.settings.remove(keys.TypeContributors, "bootstrap/metadata", layering.LevelNormalized); value != nil {
		list, err := registry.LoadInstance[TypeContributorList](classLoading, value)
		if err != nil {
			return &ConfigurationError{Unit: b.unit, Key: keys.TypeContributors, Value: value, Reason: "cannot load type contributors", Err: err}
		}
		req.TypeContributors = append(req.TypeContributors, list.TypeContributors()...)
	}
	discovered, err := registry.LoadServices[TypeContributor](classLoading, RoleTypeContributor)
	if err != nil {
		return err
	}
	req.TypeContributors = append(req.TypeContributors, discovered...)

	if value := b.settings.Value(keys.MetadataBuilderContributor); value != nil {
		contributor, err := registry.LoadInstance[MetadataBuilderContributor](classLoading, value)
		if err != nil {
			return &ConfigurationError{Unit: b.unit, Key: keys.MetadataBuilderContributor, Value: value, Reason: "cannot load metadata builder contributor", Err: err}
		}
		if err := contributor.Contribute(req); err != nil {
			return err
		}
	}
	contributors, err := registry.LoadServices[MetadataBuilderContributor](classLoading, RoleMetadataBuilderContributor)
	if err != nil {
		return err
	}
	for _, contributor := range contributors {
		if err := contributor.Contribute(req); err != nil {
			return err
		}
	}

	if factory := b.settings.Value(keys.JakartaValidationFactory); factory != nil {
		b.validatorFactory = factory
	} else if factory := b.settings.Value(keys.JavaxValidationFactory); factory != nil {
		b.diag.Deprecated(keys.JavaxValidationFactory, keys.JakartaValidationFactory)
		b.validatorFactory = factory
	}

	b.request = req
	b.logger.Debug("metadata prepared",
		"classes", len(req.ClassNames()),
		"resources", len(req.Resources),
		"type_contributors", len(req.TypeContributors),
	)
	return nil
}

func (b *Builder) applyEnhancement() error {
	dirty := b.readBool(keys.EnhancerEnableDirtyTracking, true)
	lazy := b.readBool(keys.EnhancerEnableLazyInitialization, true)
	association := b.readBool(keys.EnhancerEnableAssociationManagement, false)
	if !lazy {
		b.diag.Deprecated(keys.EnhancerEnableLazyInitialization, "true")
	}
	if !dirty {
		b.diag.Deprecated(keys.EnhancerEnableDirtyTracking, "true")
	}

	transformerProvider := b.transformerProvider()
	if (dirty || lazy || association) && transformerProvider != nil {
		transformerProvider.PushClassTransformer(EnhancementContext{
			DirtyTracking:         dirty,
			LazyInitialization:    lazy,
			AssociationManagement: association,
			ManagedClasses:        b.request.ClassNames(),
		})
		if transformer := transformerProvider.ClassTransformer(); transformer != nil {
			if b.request.TempClassLoader == nil {
				return configError(b.unit, "", nil, "enhancement requires a temp class loader, but none was given")
			}
			for _, name := range b.request.ClassNames() {
				if err := transformer.DiscoverTypes(b.request.TempClassLoader, name); err != nil {
					b.diag.EnhancementFailed(name, err)
				}
			}
		}
	}

	if aware, ok := b.metadataBuilder.(TempClassLoaderAware); ok {
		aware.ApplyTempClassLoader(nil)
	}
	b.request.TempClassLoader = nil
	return nil
}

func (b *Builder) finishPhaseOne() error {
	b.logger.Info("persistence unit prepared",
		"attempt", b.diag.AttemptID(),
		"settings", b.settings.Len(),
		"jta", b.settings.JTACoordinator(),
	)
	return nil
}

func (b *Builder) transformerProvider() ClassTransformerProvider {
	if b.descriptor == nil {
		return nil
	}
	return b.descriptor.Transformer
}

// readBool removes key and interprets its value, returning def when absent.
func (b *Builder) readBool(key string, def bool) bool {
	value := b.settings.remove(key, "bootstrap/read", layering.LevelNormalized)
	if value == nil {
		return def
	}
	return isTrue(value)
}

func isTrue(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && parsed
	default:
		return false
	}
}

// listOf flattens a single value or a slice into a list.
func listOf(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	default:
		return []any{v}
	}
}

// splitList reads a comma or space separated string, or a list of strings.
func splitList(value any) []string {
	var out []string
	for _, item := range listOf(value) {
		text, ok := item.(string)
		if !ok {
			continue
		}
		out = append(out, strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' '
		})...)
	}
	return out
}

func className(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case registry.Class:
		return v.Name
	case *registry.Class:
		if v != nil {
			return v.Name
		}
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

func classLoaders(value any) ([]registry.ClassLoader, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case registry.ClassLoader:
		return []registry.ClassLoader{v}, nil
	case []registry.ClassLoader:
		return v, nil
	}
	var out []registry.ClassLoader
	for _, item := range listOf(value) {
		loader, ok := item.(registry.ClassLoader)
		if !ok {
			return nil, fmt.Errorf("%T is not a class loader", item)
		}
		out = append(out, loader)
	}
	return out, nil
}

// Metadata completes the metadata once and returns it.
func (b *Builder) Metadata(ctx context.Context) (Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBuilderClosed
	}
	return b.metadataLocked(ctx)
}

func (b *Builder) metadataLocked(ctx context.Context) (Metadata, error) {
	if b.metadata != nil {
		return b.metadata, nil
	}
	metadata, err := b.metadataBuilder.Build(ctx, b.request)
	if err != nil {
		return nil, err
	}
	b.metadata = metadata
	return metadata, nil
}
