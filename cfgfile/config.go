// Package cfgfile loads the HCL files feeding a bootstrap: the legacy
// runtime configuration file and persistence unit descriptors.
package cfgfile

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/goliatone/go-unitboot/keys"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// MappingKind classifies a mapping reference.
type MappingKind string

const (
	MappingClass    MappingKind = "class"
	MappingResource MappingKind = "resource"
	MappingPackage  MappingKind = "package"
	MappingFile     MappingKind = "file"
)

// MappingReference names one mapping source declared by a config file.
type MappingReference struct {
	Kind  MappingKind
	Value string
}

// Config is a loaded legacy configuration file.
type Config struct {
	Source   string
	Name     string
	Settings map[string]any
	Mappings []MappingReference
}

// Loader reads configuration files from a file system.
type Loader struct {
	FS     fs.FS
	Logger *slog.Logger
}

// NewLoader returns a loader over fsys.
func NewLoader(fsys fs.FS, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{FS: fsys, Logger: logger}
}

type configRoot struct {
	SessionFactory *sessionFactoryBlock `hcl:"session_factory,block"`
	Remain         hcl.Body             `hcl:",remain"`
}

type sessionFactoryBlock struct {
	Name             string                 `hcl:"name,optional"`
	Properties       hcl.Expression         `hcl:"properties,optional"`
	Mappings         []mappingBlock         `hcl:"mapping,block"`
	ClassCaches      []classCacheBlock      `hcl:"class_cache,block"`
	CollectionCaches []collectionCacheBlock `hcl:"collection_cache,block"`
}

type mappingBlock struct {
	Class    string `hcl:"class,optional"`
	Resource string `hcl:"resource,optional"`
	Package  string `hcl:"package,optional"`
	File     string `hcl:"file,optional"`
}

type classCacheBlock struct {
	Class   string `hcl:"class,label"`
	Usage   string `hcl:"usage"`
	Region  string `hcl:"region,optional"`
	Include string `hcl:"include,optional"`
}

type collectionCacheBlock struct {
	Collection string `hcl:"collection,label"`
	Usage      string `hcl:"usage"`
	Region     string `hcl:"region,optional"`
}

// Load parses the named resource.
func (l *Loader) Load(name string) (*Config, error) {
	src, err := fs.ReadFile(l.FS, name)
	if err != nil {
		return nil, fmt.Errorf("cfgfile: read %s: %w", name, err)
	}
	return l.parse(name, src)
}

func (l *Loader) parse(name string, src []byte) (*Config, error) {
	logger := l.logger().With("resource", name)
	logger.Debug("parsing config file")

	file, diags := hclparse.NewParser().ParseHCL(src, name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("cfgfile: parse %s: %w", name, diags)
	}

	var root configRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("cfgfile: decode %s: %w", name, diags)
	}
	if root.SessionFactory == nil {
		return nil, fmt.Errorf("cfgfile: %s declares no session_factory block", name)
	}
	block := root.SessionFactory

	settings, err := evalProperties(block.Properties)
	if err != nil {
		return nil, fmt.Errorf("cfgfile: properties in %s: %w", name, err)
	}

	for _, cache := range block.ClassCaches {
		settings[keys.ClassCachePrefix+"."+cache.Class] = cacheValue(cache.Class, cache.Usage, cache.Region, cache.Include)
	}
	for _, cache := range block.CollectionCaches {
		settings[keys.CollectionCachePrefix+"."+cache.Collection] = cacheValue(cache.Collection, cache.Usage, cache.Region, "")
	}

	cfg := &Config{
		Source:   name,
		Name:     strings.TrimSpace(block.Name),
		Settings: settings,
	}
	for i, mapping := range block.Mappings {
		ref, err := mapping.reference()
		if err != nil {
			return nil, fmt.Errorf("cfgfile: mapping %d in %s: %w", i, name, err)
		}
		cfg.Mappings = append(cfg.Mappings, ref)
	}

	logger.Debug("config file loaded", "settings", len(cfg.Settings), "mappings", len(cfg.Mappings))
	return cfg, nil
}

func (m mappingBlock) reference() (MappingReference, error) {
	var refs []MappingReference
	for _, candidate := range []MappingReference{
		{Kind: MappingClass, Value: m.Class},
		{Kind: MappingResource, Value: m.Resource},
		{Kind: MappingPackage, Value: m.Package},
		{Kind: MappingFile, Value: m.File},
	} {
		if strings.TrimSpace(candidate.Value) != "" {
			refs = append(refs, candidate)
		}
	}
	if len(refs) != 1 {
		return MappingReference{}, fmt.Errorf("exactly one of class, resource, package or file is required, got %d", len(refs))
	}
	return refs[0], nil
}

// cacheValue renders a cache declaration in the usage[,region[,lazy]] form.
// The region defaults to the role so a lazy token never shifts into the
// region slot.
func cacheValue(role, usage, region, include string) string {
	parts := []string{strings.TrimSpace(usage)}
	region = strings.TrimSpace(region)
	include = strings.TrimSpace(include)
	if region == "" && include != "" {
		region = role
	}
	if region != "" {
		parts = append(parts, region)
	}
	if include != "" {
		parts = append(parts, include)
	}
	return strings.Join(parts, ",")
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.Logger
}
