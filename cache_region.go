package unitboot

import (
	"strings"
)

// parseCacheRegion parses a usage[,region[,lazy]] declaration for role.
// Tokens are separated by commas, semicolons or spaces. Only entity regions
// read the lazy token; its absence or "all" includes lazy properties.
func parseCacheRegion(key, role, value string, kind CacheRegionKind) (CacheRegionDefinition, error) {
	tokens := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	if len(tokens) == 0 {
		return CacheRegionDefinition{}, &ConfigurationError{
			Key:    key,
			Value:  value,
			Reason: "expected usage[,region[,lazy]] but found none",
		}
	}

	def := CacheRegionDefinition{
		Kind:  kind,
		Role:  role,
		Usage: tokens[0],
	}
	if len(tokens) > 1 {
		def.Region = tokens[1]
	}
	if kind == CacheRegionEntity {
		def.IncludeLazy = len(tokens) < 3 || strings.EqualFold(tokens[2], "all")
	}
	return def, nil
}
