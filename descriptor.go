package unitboot

import (
	"maps"

	"github.com/goliatone/go-unitboot/cfgfile"
	"github.com/goliatone/go-unitboot/registry"
)

// TransactionType is the coordination mode declared for a persistence unit.
type TransactionType string

const (
	TransactionResourceLocal TransactionType = "RESOURCE_LOCAL"
	TransactionJTA           TransactionType = "JTA"
)

// Descriptor is the hosting environment's declaration of a persistence unit.
type Descriptor struct {
	Name            string
	TransactionType TransactionType
	// JTADataSource and NonJTADataSource hold a registry.DataSource or a
	// lookup name.
	JTADataSource    any
	NonJTADataSource any
	ValidationMode   string
	SharedCacheMode  string
	ManagedClasses   []string
	MappingFiles     []string
	Properties       map[string]any

	ClassLoader     registry.ClassLoader
	TempClassLoader registry.ClassLoader
	Transformer     ClassTransformerProvider
}

// DescriptorFromUnit converts a unit read from a descriptor file.
func DescriptorFromUnit(unit *cfgfile.Unit) *Descriptor {
	if unit == nil {
		return nil
	}
	d := &Descriptor{
		Name:            unit.Name,
		TransactionType: TransactionType(unit.TransactionType),
		ValidationMode:  unit.ValidationMode,
		SharedCacheMode: unit.SharedCacheMode,
		ManagedClasses:  append([]string(nil), unit.ManagedClasses...),
		MappingFiles:    append([]string(nil), unit.MappingFiles...),
		Properties:      maps.Clone(unit.Properties),
	}
	if unit.JTADataSource != "" {
		d.JTADataSource = unit.JTADataSource
	}
	if unit.NonJTADataSource != "" {
		d.NonJTADataSource = unit.NonJTADataSource
	}
	return d
}

func (d *Descriptor) property(key string) any {
	if d == nil {
		return nil
	}
	return d.Properties[key]
}

func (d *Descriptor) name() string {
	if d == nil {
		return ""
	}
	return d.Name
}

func (d *Descriptor) properties() map[string]any {
	if d == nil {
		return nil
	}
	return d.Properties
}
