package unitboot

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-unitboot/cfgfile"
	"github.com/goliatone/go-unitboot/keys"
	"github.com/goliatone/go-unitboot/registry"
)

// EnhancementContext carries the enabled class enhancement features.
type EnhancementContext struct {
	DirtyTracking         bool
	LazyInitialization    bool
	AssociationManagement bool
	ManagedClasses        []string
}

// ClassTransformer pre-discovers the types reachable from a class name.
// Failures are reported per class and never abort the bootstrap.
type ClassTransformer interface {
	DiscoverTypes(loader registry.ClassLoader, className string) error
}

// ClassTransformerProvider is implemented by descriptors able to install a
// class transformer for an enhancement context.
type ClassTransformerProvider interface {
	PushClassTransformer(EnhancementContext)
	ClassTransformer() ClassTransformer
}

// TypeContributor registers custom types on the metadata request.
type TypeContributor interface {
	ContributeTypes(*MetadataRequest) error
}

// TypeContributorList is the value accepted under the type contributors key.
type TypeContributorList interface {
	TypeContributors() []TypeContributor
}

// MetadataBuilderContributor adjusts the metadata request before it is
// handed to the metadata builder.
type MetadataBuilderContributor interface {
	Contribute(*MetadataRequest) error
}

// MetadataRequest is the prepared set of mapping sources.
type MetadataRequest struct {
	Unit             string
	Settings         *MergedSettings
	Registry         *registry.StandardRegistry
	AnnotatedClasses []string
	LoadedClasses    []any
	Resources        []string
	Packages         []string
	ConfigMappings   []cfgfile.MappingReference
	CacheRegions     []CacheRegionDefinition
	TypeContributors []TypeContributor
	ScannerDiscovery string
	TempClassLoader  registry.ClassLoader
}

// ClassNames returns every class the request names, annotated first.
func (r *MetadataRequest) ClassNames() []string {
	out := append([]string(nil), r.AnnotatedClasses...)
	for _, ref := range r.ConfigMappings {
		if ref.Kind == cfgfile.MappingClass {
			out = append(out, ref.Value)
		}
	}
	return out
}

// Metadata is the finalized mapping model.
type Metadata interface {
	Unit() string
}

// MetadataBuilder turns a prepared request into metadata.
type MetadataBuilder interface {
	Build(ctx context.Context, req *MetadataRequest) (Metadata, error)
}

// TempClassLoaderAware builders are told when the temporary class loader is
// revoked after enhancement discovery.
type TempClassLoaderAware interface {
	ApplyTempClassLoader(registry.ClassLoader)
}

// MetadataBuilderFactory creates the metadata builder for a registry.
type MetadataBuilderFactory func(reg *registry.StandardRegistry) (MetadataBuilder, error)

// RuntimeFactory is the running system produced by phase 2.
type RuntimeFactory interface {
	Name() string
	Close() error
}

// RuntimeFactoryObserver is notified of runtime factory lifecycle events.
type RuntimeFactoryObserver interface {
	Created(RuntimeFactory)
	Closed(RuntimeFactory)
}

// RuntimeFactoryRequest collects everything phase 2 hands to the runtime
// factory builder.
type RuntimeFactoryRequest struct {
	Metadata              Metadata
	Registry              *registry.StandardRegistry
	Settings              map[string]any
	Observers             []RuntimeFactoryObserver
	ValidatorFactory      any
	JTATransactionAccess  bool
	RefreshDetachedEntity bool
}

// RuntimeFactoryBuilder constructs the runtime factory.
type RuntimeFactoryBuilder interface {
	BuildRuntimeFactory(ctx context.Context, req RuntimeFactoryRequest) (RuntimeFactory, error)
}

// RuntimeFactoryBuilderFunc adapts a function to RuntimeFactoryBuilder.
type RuntimeFactoryBuilderFunc func(ctx context.Context, req RuntimeFactoryRequest) (RuntimeFactory, error)

func (f RuntimeFactoryBuilderFunc) BuildRuntimeFactory(ctx context.Context, req RuntimeFactoryRequest) (RuntimeFactory, error) {
	return f(ctx, req)
}

// SchemaCoordinator runs schema management for prepared metadata.
type SchemaCoordinator interface {
	Process(ctx context.Context, metadata Metadata, reg *registry.StandardRegistry, settings map[string]any) error
}

// MappingMetadata is the metadata produced by the default builder: a
// record of the mapping sources it was handed.
type MappingMetadata struct {
	UnitName     string
	Classes      []string
	Resources    []string
	Packages     []string
	CacheRegions []CacheRegionDefinition
}

func (m *MappingMetadata) Unit() string { return m.UnitName }

type mappingMetadataBuilder struct {
	mu         sync.Mutex
	tempLoader registry.ClassLoader
}

// NewMappingMetadataBuilder returns the default metadata builder.
func NewMappingMetadataBuilder(*registry.StandardRegistry) (MetadataBuilder, error) {
	return &mappingMetadataBuilder{}, nil
}

func (b *mappingMetadataBuilder) ApplyTempClassLoader(loader registry.ClassLoader) {
	b.mu.Lock()
	b.tempLoader = loader
	b.mu.Unlock()
}

func (b *mappingMetadataBuilder) Build(_ context.Context, req *MetadataRequest) (Metadata, error) {
	if req == nil {
		return nil, errors.New("unitboot: metadata request is nil")
	}
	for _, contributor := range req.TypeContributors {
		if err := contributor.ContributeTypes(req); err != nil {
			return nil, err
		}
	}
	md := &MappingMetadata{
		UnitName:     req.Unit,
		Classes:      req.ClassNames(),
		Resources:    append([]string(nil), req.Resources...),
		Packages:     append([]string(nil), req.Packages...),
		CacheRegions: append([]CacheRegionDefinition(nil), req.CacheRegions...),
	}
	for _, ref := range req.ConfigMappings {
		switch ref.Kind {
		case cfgfile.MappingResource, cfgfile.MappingFile:
			md.Resources = append(md.Resources, ref.Value)
		case cfgfile.MappingPackage:
			md.Packages = append(md.Packages, ref.Value)
		}
	}
	return md, nil
}

// runtime is the default runtime factory: it owns the registry and notifies
// observers when closed.
type runtime struct {
	name      string
	registry  *registry.StandardRegistry
	observers []RuntimeFactoryObserver

	once sync.Once
}

func (r *runtime) Name() string { return r.name }

// Registry returns the registry the runtime owns.
func (r *runtime) Registry() *registry.StandardRegistry { return r.registry }

func (r *runtime) Close() error {
	r.once.Do(func() {
		for _, observer := range r.observers {
			observer.Closed(r)
		}
	})
	return nil
}

// DefaultRuntimeFactoryBuilder builds a runtime that only manages the
// registry lifecycle.
func DefaultRuntimeFactoryBuilder() RuntimeFactoryBuilder {
	return RuntimeFactoryBuilderFunc(func(_ context.Context, req RuntimeFactoryRequest) (RuntimeFactory, error) {
		name, _ := req.Settings[keys.SessionFactoryName].(string)
		if name == "" && req.Metadata != nil {
			name = req.Metadata.Unit()
		}
		rt := &runtime{
			name:      name,
			registry:  req.Registry,
			observers: append([]RuntimeFactoryObserver(nil), req.Observers...),
		}
		for _, observer := range rt.observers {
			observer.Created(rt)
		}
		return rt, nil
	})
}

// registryCloser tears down the registry chain when the runtime closes.
type registryCloser struct {
	registry *registry.StandardRegistry
	diag     *Diagnostics
}

func (c registryCloser) Created(RuntimeFactory) {}

func (c registryCloser) Closed(factory RuntimeFactory) {
	if err := c.registry.Destroy(); err != nil {
		c.diag.CleanupFailed("registry", err)
	}
	c.registry.Parent().Close()
	c.diag.RuntimeFactoryClosed(factory.Name())
}
