// This file defines the capability surface the translator requires from the
// underlying store. The engine never builds SQL itself; it hands compiled
// clauses to a Builder and lets the store render, execute and materialize.
package query

import (
	"context"

	"github.com/asaidimu/go-jsonapi-params/core/schema"
)

// Builder is the query-builder capability of the underlying store. A
// Builder accumulates clauses for exactly one query and is discarded after
// execution. Implementations own all schema knowledge: unknown columns,
// relations or aggregate arguments fail at Count/Rows time, not earlier.
type Builder interface {
	// Where attaches one predicate clause. Clauses combine with AND.
	Where(clause FilterClause) error

	// Join ensures the join chain for a relation path exists. Repeated
	// calls with the same path must share one join.
	Join(relations []string) error

	// OrderBy appends one sort key; call order is precedence order.
	OrderBy(key SortKey) error

	// Select sets the projection for the primary rows.
	Select(fields []ProjectionField) error

	// GroupBy appends grouping terms, resolved with projection rules.
	GroupBy(fields []ProjectionField) error

	// Limit and Offset bound the primary row window.
	Limit(n int)
	Offset(n int)

	// Include registers a relation chain for eager loading.
	Include(spec IncludeSpec) error

	// Count reports how many rows match the accumulated predicates and
	// joins, ignoring limit and offset.
	Count(ctx context.Context) (int64, error)

	// Rows executes the accumulated query and materializes the results.
	Rows(ctx context.Context) ([]schema.Document, error)
}

// Refiner is an opaque, caller-supplied refinement applied to a builder:
// either the scoped builder of an included relation, or — for the trailing
// raw refinement — the primary builder itself, after every compiled stage.
type Refiner interface {
	Refine(b Builder) error
}

// RefinerFunc adapts a plain function to the Refiner interface.
type RefinerFunc func(b Builder) error

// Refine implements Refiner.
func (f RefinerFunc) Refine(b Builder) error {
	return f(b)
}
