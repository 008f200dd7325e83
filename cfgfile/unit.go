package cfgfile

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Unit is a persistence unit declared in a descriptor file.
type Unit struct {
	Name             string
	Source           string
	TransactionType  string
	JTADataSource    string
	NonJTADataSource string
	ValidationMode   string
	SharedCacheMode  string
	ManagedClasses   []string
	MappingFiles     []string
	Properties       map[string]any
}

type unitRoot struct {
	Units  []unitBlock `hcl:"persistence_unit,block"`
	Remain hcl.Body    `hcl:",remain"`
}

type unitBlock struct {
	Name             string         `hcl:"name,label"`
	TransactionType  string         `hcl:"transaction_type,optional"`
	JTADataSource    string         `hcl:"jta_data_source,optional"`
	NonJTADataSource string         `hcl:"non_jta_data_source,optional"`
	ValidationMode   string         `hcl:"validation_mode,optional"`
	SharedCacheMode  string         `hcl:"shared_cache_mode,optional"`
	ManagedClasses   []string       `hcl:"managed_classes,optional"`
	MappingFiles     []string       `hcl:"mapping_files,optional"`
	Properties       hcl.Expression `hcl:"properties,optional"`
}

// LoadUnits parses every persistence unit declared in the named file.
func (l *Loader) LoadUnits(name string) ([]*Unit, error) {
	src, err := fs.ReadFile(l.FS, name)
	if err != nil {
		return nil, fmt.Errorf("cfgfile: read %s: %w", name, err)
	}

	file, diags := hclparse.NewParser().ParseHCL(src, name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("cfgfile: parse %s: %w", name, diags)
	}
	var root unitRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("cfgfile: decode %s: %w", name, diags)
	}

	units := make([]*Unit, 0, len(root.Units))
	seen := map[string]bool{}
	for _, block := range root.Units {
		if seen[block.Name] {
			return nil, fmt.Errorf("cfgfile: %s declares persistence unit %q twice", name, block.Name)
		}
		seen[block.Name] = true

		props, err := evalProperties(block.Properties)
		if err != nil {
			return nil, fmt.Errorf("cfgfile: properties of unit %q in %s: %w", block.Name, name, err)
		}
		units = append(units, &Unit{
			Name:             block.Name,
			Source:           name,
			TransactionType:  strings.TrimSpace(block.TransactionType),
			JTADataSource:    strings.TrimSpace(block.JTADataSource),
			NonJTADataSource: strings.TrimSpace(block.NonJTADataSource),
			ValidationMode:   strings.TrimSpace(block.ValidationMode),
			SharedCacheMode:  strings.TrimSpace(block.SharedCacheMode),
			ManagedClasses:   block.ManagedClasses,
			MappingFiles:     block.MappingFiles,
			Properties:       props,
		})
	}
	l.logger().Debug("descriptor file loaded", "resource", name, "units", len(units))
	return units, nil
}

// LoadUnit returns the named unit, or the only unit when name is empty.
func (l *Loader) LoadUnit(file, name string) (*Unit, error) {
	units, err := l.LoadUnits(file)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(units) != 1 {
			return nil, fmt.Errorf("cfgfile: %s declares %d persistence units, name one", file, len(units))
		}
		return units[0], nil
	}
	for _, unit := range units {
		if unit.Name == name {
			return unit, nil
		}
	}
	return nil, fmt.Errorf("cfgfile: persistence unit %q not found in %s", name, file)
}
