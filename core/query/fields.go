package query

import (
	"regexp"

	"github.com/asaidimu/go-jsonapi-params/core/schema"
)

// aggregatePattern is the closed whitelist of aggregate references. The
// function and argument of a match pass through verbatim, exempt from the
// naming convention applied to plain fields.
var aggregatePattern = regexp.MustCompile(`^(count|sum|avg|max|min)\(([^()]+)\)$`)

// CompileFields turns a fields specification into per-resource-type
// projection lists, preserving the order of each list.
func CompileFields(spec map[string][]string, naming schema.NamingConvention) map[string][]ProjectionField {
	if len(spec) == 0 {
		return nil
	}
	out := make(map[string][]ProjectionField, len(spec))
	for resource, names := range spec {
		fields := make([]ProjectionField, 0, len(names))
		for _, name := range names {
			fields = append(fields, compileProjection(name, naming))
		}
		out[resource] = fields
	}
	return out
}

// CompileGroup resolves grouping terms with the same rules as projections:
// plain fields go through the naming convention, aggregate expressions do
// not.
func CompileGroup(spec []string, naming schema.NamingConvention) []ProjectionField {
	fields := make([]ProjectionField, 0, len(spec))
	for _, name := range spec {
		fields = append(fields, compileProjection(name, naming))
	}
	return fields
}

func compileProjection(name string, naming schema.NamingConvention) ProjectionField {
	if m := aggregatePattern.FindStringSubmatch(name); m != nil {
		return ProjectionField{Function: m[1], Argument: m[2]}
	}
	return ProjectionField{Column: naming.ToColumn(name)}
}
