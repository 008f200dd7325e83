package unitboot

import (
	"errors"
	"io"
	"log/slog"
	"maps"

	"github.com/goliatone/go-unitboot/cfgfile"
	"github.com/goliatone/go-unitboot/keys"
	"github.com/goliatone/go-unitboot/layering"
	"github.com/goliatone/go-unitboot/registry"
)

// ConfigLoader resolves a legacy config file reference.
type ConfigLoader interface {
	Load(name string) (*cfgfile.Config, error)
}

// ConfigLoaderFunc adapts a function to ConfigLoader.
type ConfigLoaderFunc func(name string) (*cfgfile.Config, error)

func (f ConfigLoaderFunc) Load(name string) (*cfgfile.Config, error) { return f(name) }

type mergeConfig struct {
	ambient    map[string]any
	baseline   func(map[string]any)
	dataSource registry.DataSource
	loader     ConfigLoader
	diag       *Diagnostics
	selector   *registry.StrategySelector
	logger     *slog.Logger
}

type mergeResult struct {
	settings *MergedSettings
	config   *cfgfile.Config
}

// Merge layers ambient defaults, the descriptor, an optional legacy config
// file and the integration overrides into one settings view.
// Builder-only options are ignored.
func Merge(descriptor *Descriptor, overrides map[string]any, opts ...Option) (*MergedSettings, error) {
	cfg := applyOptions(opts)
	result, err := merge(descriptor, overrides, cfg.mergeConfig)
	if err != nil {
		return nil, err
	}
	return result.settings, nil
}

func merge(descriptor *Descriptor, overrides map[string]any, cfg mergeConfig) (mergeResult, error) {
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	unit := descriptor.name()
	logger = logger.With("unit", unit)
	cfg.diag.setUnit(unit)

	settings := newMergedSettings()
	n := &normalization{
		unit:       unit,
		descriptor: descriptor,
		settings:   settings,
		diag:       cfg.diag,
		selector:   cfg.selector,
		dataSource: cfg.dataSource,
		logger:     logger,
	}

	n.layer(layering.LevelAmbient, "ambient", cfg.ambient)

	if cfg.baseline != nil {
		baseline := map[string]any{}
		cfg.baseline(baseline)
		n.layer(layering.LevelBaseline, "baseline", baseline)
	}

	if descriptor != nil {
		n.layer(layering.LevelDescriptor, descriptor.Name, descriptor.Properties)
		settings.put(keys.PersistenceUnitName, descriptor.Name, sourceLabel(layering.LevelDescriptor, descriptor.Name), layering.LevelDescriptor)
	}

	loaded, err := n.applyConfigFile(cfg.loader, overrides)
	if err != nil {
		return mergeResult{}, err
	}

	if err := n.normalize(overrides); err != nil {
		return mergeResult{}, err
	}

	if err := n.finish(); err != nil {
		return mergeResult{}, err
	}
	logger.Debug("settings merged", "keys", settings.Len(), "cache_regions", len(settings.CacheRegions()), "jta", settings.JTACoordinator())
	return mergeResult{settings: settings, config: loaded}, nil
}

// layer reconciles synonyms within values and overlays them.
func (n *normalization) layer(level layering.Level, name string, values map[string]any) {
	if len(values) == 0 {
		return
	}
	values = maps.Clone(values)
	n.reconcile(values)
	n.settings.overlay(layering.Capture(name, level, values))
}

// applyConfigFile loads the legacy config file named by the descriptor
// properties, or failing that by the integration overrides.
func (n *normalization) applyConfigFile(loader ConfigLoader, overrides map[string]any) (*cfgfile.Config, error) {
	name := stringValue(n.settings.remove(keys.CfgXMLFile, "descriptor", layering.LevelDescriptor))
	if name == "" {
		name = stringValue(overrides[keys.CfgXMLFile])
	}
	if name == "" {
		return nil, nil
	}
	if loader == nil {
		return nil, &ConfigurationError{Unit: n.unit, Key: keys.CfgXMLFile, Value: name, Reason: "config file named but no config loader configured"}
	}

	loaded, err := loader.Load(name)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &ConfigurationError{Unit: n.unit, Key: keys.CfgXMLFile, Value: name, Reason: "cannot load config file", Err: err}
	}
	if loaded == nil {
		return nil, nil
	}

	if loaded.Name != "" && !n.settings.Has(keys.SessionFactoryName) {
		n.settings.put(keys.SessionFactoryName, loaded.Name, sourceLabel(layering.LevelConfigFile, name), layering.LevelConfigFile)
	}
	n.layer(layering.LevelConfigFile, name, loaded.Settings)
	n.logger.Debug("config file applied", "resource", name, "settings", len(loaded.Settings), "mappings", len(loaded.Mappings))
	return loaded, nil
}

// finish scans for cache region declarations and removes every nil entry.
func (n *normalization) finish() error {
	for _, key := range n.settings.Keys() {
		value, _ := n.settings.Get(key)
		if value == nil {
			n.settings.remove(key, "normalized/nulls", layering.LevelNormalized)
			continue
		}

		var (
			kind   CacheRegionKind
			prefix string
		)
		switch setting, ok := keys.ForKey(key); {
		case !ok || !setting.Prefix:
			continue
		case setting.Name == keys.SettingEntityCache:
			kind, prefix = CacheRegionEntity, keys.ClassCachePrefix
		case setting.Name == keys.SettingCollectionCache:
			kind, prefix = CacheRegionCollection, keys.CollectionCachePrefix
		default:
			continue
		}

		raw, ok := value.(string)
		if !ok {
			return &ConfigurationError{Unit: n.unit, Key: key, Value: value, Reason: "cache region declaration must be a string"}
		}
		def, err := parseCacheRegion(key, key[len(prefix)+1:], raw, kind)
		if err != nil {
			var cfgErr *ConfigurationError
			if errors.As(err, &cfgErr) {
				cfgErr.Unit = n.unit
			}
			return err
		}
		n.settings.addCacheRegion(def)
	}
	return nil
}
