package unitboot

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/goliatone/go-unitboot/keys"
	"github.com/goliatone/go-unitboot/registry"
)

type recordingProvider struct {
	stops   int
	stopErr error
}

func (p *recordingProvider) Stop() error {
	p.stops++
	return p.stopErr
}

func providerInitiator(provider any) registry.ServiceInitiator {
	return registry.InitiatorFunc{
		ServiceRole: registry.RoleConnectionProvider,
		Fn: func(map[string]any, *registry.StandardRegistry) (any, error) {
			return provider, nil
		},
	}
}

type recordingObserver struct {
	created []string
	closed  []string
}

func (o *recordingObserver) Created(factory RuntimeFactory) {
	o.created = append(o.created, factory.Name())
}

func (o *recordingObserver) Closed(factory RuntimeFactory) {
	o.closed = append(o.closed, factory.Name())
}

type stubTransformer struct {
	failing    string
	discovered []string
}

func (t *stubTransformer) DiscoverTypes(_ registry.ClassLoader, className string) error {
	t.discovered = append(t.discovered, className)
	if className == t.failing {
		return errors.New("unreadable class")
	}
	return nil
}

type stubTransformerProvider struct {
	pushed      []EnhancementContext
	transformer *stubTransformer
}

func (p *stubTransformerProvider) PushClassTransformer(ctx EnhancementContext) {
	p.pushed = append(p.pushed, ctx)
}

func (p *stubTransformerProvider) ClassTransformer() ClassTransformer {
	return p.transformer
}

type namedRuntime struct{ name string }

func (r namedRuntime) Name() string { return r.name }
func (r namedRuntime) Close() error { return nil }

func TestBuilderDefaultFlow(t *testing.T) {
	diag := NewDiagnostics()
	b, err := NewBuilder(&Descriptor{Name: "orders", ManagedClasses: []string{"app.Order"}}, nil, WithDiagnostics(diag))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if b.Phase() != PhaseMetadataBuilderReady {
		t.Fatalf("expected metadata-builder-ready, got %s", b.Phase())
	}
	if !b.Settings().Sealed() {
		t.Fatalf("settings must be sealed after phase 1")
	}

	factory, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if factory.Name() != "orders" {
		t.Fatalf("expected runtime named after the unit, got %q", factory.Name())
	}
	if b.Phase() != PhaseBuilt {
		t.Fatalf("expected built, got %s", b.Phase())
	}
	if b.Registry().Destroyed() {
		t.Fatalf("registry must stay alive while the runtime is open")
	}

	if err := factory.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !b.Registry().Destroyed() || !b.Registry().Parent().Closed() {
		t.Fatalf("closing the runtime must release both registries")
	}
	if closed := diag.NoticesOf(NoticeRuntimeFactoryClosed); len(closed) != 1 || closed[0].Key != "orders" {
		t.Fatalf("expected one runtime closed notice, got %+v", closed)
	}
}

func TestBuilderBuildsOnce(t *testing.T) {
	b, err := NewBuilder(&Descriptor{Name: "orders"}, nil)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := b.Build(context.Background()); !errors.Is(err, ErrAlreadyBuilt) {
		t.Fatalf("expected ErrAlreadyBuilt, got %v", err)
	}
	if err := b.GenerateSchema(context.Background()); !errors.Is(err, ErrAlreadyBuilt) {
		t.Fatalf("expected ErrAlreadyBuilt from schema generation, got %v", err)
	}
	b.Cancel()
	if b.Phase() != PhaseBuilt {
		t.Fatalf("cancel after build must not release, got %s", b.Phase())
	}
}

func TestBuilderForcesFlushBeforeCompletionOff(t *testing.T) {
	diag := NewDiagnostics()
	b, err := NewBuilder(&Descriptor{Name: "orders"}, map[string]any{keys.FlushBeforeCompletion: "true"}, WithDiagnostics(diag))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	defer b.Cancel()
	if got := b.Settings().Value(keys.FlushBeforeCompletion); got != "false" {
		t.Fatalf("expected flush before completion forced to false, got %v", got)
	}
	ignored := diag.NoticesOf(NoticeIgnored)
	if len(ignored) != 1 || ignored[0].Key != keys.FlushBeforeCompletion || ignored[0].Replacement != "false" {
		t.Fatalf("expected one ignored notice, got %+v", ignored)
	}
}

func TestBuilderReleasesOnPhaseOneFailure(t *testing.T) {
	diag := NewDiagnostics()
	provider := &recordingProvider{}
	boom := errors.New("metadata builder unavailable")

	b, err := NewBuilder(&Descriptor{Name: "orders"}, nil,
		WithDiagnostics(diag),
		WithServiceInitiators(providerInitiator(provider)),
		WithMetadataBuilderFactory(func(*registry.StandardRegistry) (MetadataBuilder, error) {
			return nil, boom
		}),
	)
	if b != nil {
		t.Fatalf("expected no builder on failure")
	}
	if err != boom {
		t.Fatalf("expected the original error, got %v", err)
	}
	if provider.stops != 1 {
		t.Fatalf("expected the connection provider to be stopped once, got %d", provider.stops)
	}
	failed := diag.NoticesOf(NoticeBootstrapFailed)
	if len(failed) != 1 || failed[0].Key != PhaseRuntimeRegistryBuilt.String() || !errors.Is(failed[0].Err, boom) {
		t.Fatalf("unexpected bootstrap failure notices %+v", failed)
	}
	phases := diag.NoticesOf(NoticePhaseEntered)
	if last := phases[len(phases)-1]; last.Key != PhaseCleanedUp.String() {
		t.Fatalf("expected cleaned-up as the last phase, got %s", last.Key)
	}
}

func TestBuilderReportsEnhancementFailures(t *testing.T) {
	diag := NewDiagnostics()
	transformer := &stubTransformer{failing: "app.Broken"}
	provider := &stubTransformerProvider{transformer: transformer}
	descriptor := &Descriptor{
		Name:            "orders",
		ManagedClasses:  []string{"app.Order", "app.Broken"},
		TempClassLoader: registry.NewTypeLoader(),
		Transformer:     provider,
	}

	b, err := NewBuilder(descriptor, map[string]any{
		keys.EnhancerEnableDirtyTracking:         "false",
		keys.EnhancerEnableAssociationManagement: true,
	}, WithDiagnostics(diag))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	defer b.Cancel()

	if len(provider.pushed) != 1 {
		t.Fatalf("expected one transformer push, got %d", len(provider.pushed))
	}
	pushed := provider.pushed[0]
	if pushed.DirtyTracking || !pushed.LazyInitialization || !pushed.AssociationManagement {
		t.Fatalf("unexpected enhancement context %+v", pushed)
	}
	if !slices.Equal(transformer.discovered, []string{"app.Order", "app.Broken"}) {
		t.Fatalf("unexpected discovery order %v", transformer.discovered)
	}
	failed := diag.NoticesOf(NoticeEnhancementFailed)
	if len(failed) != 1 || failed[0].Key != "app.Broken" {
		t.Fatalf("expected one enhancement failure, got %+v", failed)
	}
	deprecated := diag.NoticesOf(NoticeDeprecated)
	if len(deprecated) != 1 || deprecated[0].Key != keys.EnhancerEnableDirtyTracking {
		t.Fatalf("expected dirty tracking deprecation, got %+v", deprecated)
	}
	for _, key := range []string{keys.EnhancerEnableDirtyTracking, keys.EnhancerEnableLazyInitialization, keys.EnhancerEnableAssociationManagement} {
		if b.Settings().Has(key) {
			t.Fatalf("enhancement flag %s must be consumed", key)
		}
	}
}

func TestBuilderRequiresTempClassLoaderForEnhancement(t *testing.T) {
	descriptor := &Descriptor{
		Name:           "orders",
		ManagedClasses: []string{"app.Order"},
		Transformer:    &stubTransformerProvider{transformer: &stubTransformer{}},
	}
	_, err := NewBuilder(descriptor, nil)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestBuilderMappingResources(t *testing.T) {
	b, err := NewBuilder(&Descriptor{Name: "orders", MappingFiles: []string{"orm.xml"}}, map[string]any{
		keys.HbmXMLFiles: "a.hbm.xml, b.hbm.xml",
	})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	defer b.Cancel()
	metadata, err := b.Metadata(context.Background())
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	mapping, ok := metadata.(*MappingMetadata)
	if !ok {
		t.Fatalf("unexpected metadata type %T", metadata)
	}
	if !slices.Equal(mapping.Resources, []string{"orm.xml", "a.hbm.xml", "b.hbm.xml"}) {
		t.Fatalf("unexpected resources %v", mapping.Resources)
	}
	if b.Settings().Has(keys.HbmXMLFiles) {
		t.Fatalf("mapping file list must be consumed")
	}
}

func TestBuilderPhaseTwoFlags(t *testing.T) {
	var captured RuntimeFactoryRequest
	b, err := NewBuilder(&Descriptor{Name: "orders"}, map[string]any{
		keys.AllowJTATransactionAccess: "true",
	}, WithRuntimeFactoryBuilder(RuntimeFactoryBuilderFunc(func(_ context.Context, req RuntimeFactoryRequest) (RuntimeFactory, error) {
		captured = req
		return namedRuntime{name: "custom"}, nil
	})))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	factory, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if factory.Name() != "custom" {
		t.Fatalf("expected the custom runtime, got %q", factory.Name())
	}
	if !captured.JTATransactionAccess || captured.RefreshDetachedEntity {
		t.Fatalf("unexpected phase 2 flags %+v", captured)
	}
	if _, ok := captured.Settings[keys.AllowJTATransactionAccess]; ok {
		t.Fatalf("phase 2 flags must be consumed before building")
	}
	if len(captured.Observers) != 1 {
		t.Fatalf("expected only the registry closer, got %d observers", len(captured.Observers))
	}
}

func TestBuilderResolvesObserverStrategy(t *testing.T) {
	observer := &recordingObserver{}
	b, err := NewBuilder(&Descriptor{Name: "orders"}, map[string]any{
		keys.SessionFactoryObserver: "recorder",
	}, WithStrategies(registry.StrategyRegistration{
		Role: RoleRuntimeFactoryObserver,
		Name: "recorder",
		New:  func() (any, error) { return observer, nil },
	}))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	factory, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := factory.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !slices.Equal(observer.created, []string{"orders"}) || !slices.Equal(observer.closed, []string{"orders"}) {
		t.Fatalf("unexpected observer calls %+v", observer)
	}
}

func TestBuilderUnknownObserverFailsBuild(t *testing.T) {
	diag := NewDiagnostics()
	b, err := NewBuilder(&Descriptor{Name: "orders"}, map[string]any{
		keys.SessionFactoryObserver: "missing",
	}, WithDiagnostics(diag))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	_, err = b.Build(context.Background())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Key != keys.SessionFactoryObserver {
		t.Fatalf("expected observer ConfigurationError, got %v", err)
	}
	if !b.Registry().Destroyed() || b.Phase() != PhaseCleanedUp {
		t.Fatalf("a failed build must release the builder")
	}
	if _, err := b.Build(context.Background()); !errors.Is(err, ErrAlreadyBuilt) {
		t.Fatalf("expected ErrAlreadyBuilt after a failed build, got %v", err)
	}
}

type recordingCoordinator struct {
	units []string
	err   error
}

func (c *recordingCoordinator) Process(_ context.Context, metadata Metadata, _ *registry.StandardRegistry, _ map[string]any) error {
	c.units = append(c.units, metadata.Unit())
	return c.err
}

func TestBuilderGenerateSchema(t *testing.T) {
	coordinator := &recordingCoordinator{}
	b, err := NewBuilder(&Descriptor{Name: "orders"}, nil, WithSchemaCoordinator(coordinator))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if err := b.GenerateSchema(context.Background()); err != nil {
		t.Fatalf("generate schema: %v", err)
	}
	if !slices.Equal(coordinator.units, []string{"orders"}) {
		t.Fatalf("unexpected coordinator calls %v", coordinator.units)
	}
	if !b.Registry().Destroyed() || b.Phase() != PhaseCleanedUp {
		t.Fatalf("schema generation must release the builder")
	}

	failing := &recordingCoordinator{err: errors.New("ddl rejected")}
	b, err = NewBuilder(&Descriptor{Name: "orders"}, nil, WithSchemaCoordinator(failing))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if err := b.GenerateSchema(context.Background()); !errors.Is(err, failing.err) {
		t.Fatalf("expected wrapped coordinator error, got %v", err)
	}
}

func TestBuilderGenerateSchemaWithoutCoordinator(t *testing.T) {
	b, err := NewBuilder(&Descriptor{Name: "orders"}, nil)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if err := b.GenerateSchema(context.Background()); !errors.Is(err, ErrNoSchemaCoordinator) {
		t.Fatalf("expected ErrNoSchemaCoordinator, got %v", err)
	}
	if b.Phase() != PhaseCleanedUp {
		t.Fatalf("builder must be released, got %s", b.Phase())
	}
}

func TestBuilderCancel(t *testing.T) {
	provider := &recordingProvider{}
	b, err := NewBuilder(&Descriptor{Name: "orders"}, nil, WithServiceInitiators(providerInitiator(provider)))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	b.Cancel()
	b.Cancel()
	if provider.stops != 1 {
		t.Fatalf("expected a single stop, got %d", provider.stops)
	}
	if _, err := b.Build(context.Background()); !errors.Is(err, ErrBuilderClosed) {
		t.Fatalf("expected ErrBuilderClosed, got %v", err)
	}
	if _, err := b.Metadata(context.Background()); !errors.Is(err, ErrBuilderClosed) {
		t.Fatalf("expected ErrBuilderClosed from metadata, got %v", err)
	}
}

func TestBuilderSettingsGuards(t *testing.T) {
	overrides := map[string]any{keys.URL: "postgres://db/orders"}
	passing := WithSettingsGuard(Guard{Name: "url", Expr: `has("hibernate.connection.url")`})
	b, err := NewBuilder(&Descriptor{Name: "orders"}, overrides, passing, WithServiceInitiators(providerInitiator(nil)))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	b.Cancel()

	failing := WithSettingsGuard(Guard{Name: "pool", Engine: EngineCEL, Expr: `call("has", "app.required")`})
	_, err = NewBuilder(&Descriptor{Name: "orders"}, overrides, failing, WithServiceInitiators(providerInitiator(nil)))
	var guardErr *GuardError
	if !errors.As(err, &guardErr) || guardErr.Guard != "pool" {
		t.Fatalf("expected guard failure, got %v", err)
	}
	if len(guardErr.Keys) != 1 || guardErr.Keys[0] != "app.required" {
		t.Fatalf("expected the guard's keys on the error, got %v", guardErr.Keys)
	}
}

func TestBuilderCustomGuardFunction(t *testing.T) {
	calls := 0
	_, err := NewBuilder(&Descriptor{Name: "orders"}, nil,
		WithGuardFunction("approved", func(args ...any) (any, error) {
			calls++
			return args[0] == "orders", nil
		}),
		WithSettingsGuard(Guard{Name: "approved", Expr: `approved(unit)`}),
	)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the custom function to run once, got %d", calls)
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseEnhancementDiscoveryApplied.String() != "enhancement-discovery-applied" {
		t.Fatalf("unexpected phase name %s", PhaseEnhancementDiscoveryApplied)
	}
	if Phase(42).String() != "phase(42)" {
		t.Fatalf("unexpected fallback name %s", Phase(42))
	}
}
