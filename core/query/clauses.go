// Package query compiles a parsed ParameterSet into unambiguous clauses and
// drives them, in a fixed stage order, through a store-supplied query
// builder. The clause model is the contract between the compilers and the
// store: predicates, sort keys, projections, includes and pagination, with
// the OR/AND composition rules made explicit instead of stringly encoded.
package query

import (
	"strings"

	"github.com/asaidimu/go-jsonapi-params/core/params"
)

// Operator is a filter predicate operator from the closed grammar.
type Operator string

// Supported filter operators.
const (
	OperatorEq   Operator = "eq"
	OperatorLike Operator = "like"
	OperatorNot  Operator = "not"
	OperatorLt   Operator = "lt"
	OperatorLte  Operator = "lte"
	OperatorGt   Operator = "gt"
	OperatorGte  Operator = "gte"
)

// reservedOperators are the top-level filter keys interpreted as operator
// mappings rather than bare field keys.
var reservedOperators = map[string]Operator{
	"like": OperatorLike,
	"not":  OperatorNot,
	"lt":   OperatorLt,
	"lte":  OperatorLte,
	"gt":   OperatorGt,
	"gte":  OperatorGte,
}

// NullValue is the sentinel standing in for a null condition. It is
// substituted whenever a tokenized filter value equals the literal text
// "null"; an actual null and that text are deliberately indistinguishable.
type NullValue struct{}

// Null is the shared null sentinel instance.
var Null = NullValue{}

// IsNull reports whether a compiled filter value is the null sentinel.
func IsNull(v any) bool {
	_, ok := v.(NullValue)
	return ok
}

// FilterClause is one predicate contributing to the WHERE condition. Values
// is never empty. Values within one clause combine with OR under eq and
// like, and with AND under not; distinct clauses always combine with AND.
type FilterClause struct {
	Op     Operator
	Path   params.FieldPath
	Values []any
}

// SortDirection is the direction of one sort key.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortKey is one ORDER BY term. Sequence order is precedence order.
type SortKey struct {
	Path      params.FieldPath
	Direction SortDirection
}

// ProjectionField is either a plain attribute reference, resolved through
// the naming convention, or a whitelisted aggregate expression whose
// function and argument pass through verbatim.
type ProjectionField struct {
	Column   string // storage column name, set for plain fields
	Function string // aggregate function name, set for aggregate fields
	Argument string // aggregate argument, passed through verbatim
}

// Aggregate reports whether the field is an aggregate expression.
func (f ProjectionField) Aggregate() bool {
	return f.Function != ""
}

// IncludeSpec names one relation chain to eager-load alongside the primary
// rows, optionally refined by an opaque callback and narrowed to a
// projection for the terminal relation's resource type.
type IncludeSpec struct {
	Relations  []string
	Refine     Refiner
	Projection []ProjectionField
}

// Path returns the dotted form of the include's relation chain.
func (s IncludeSpec) Path() string {
	return strings.Join(s.Relations, ".")
}
