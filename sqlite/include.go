package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/asaidimu/go-jsonapi-params/core/query"
	"github.com/asaidimu/go-jsonapi-params/core/schema"
)

// loadIncludes resolves each registered include against the fetched primary
// rows. Every include walks its relation chain level by level, and each
// level issues a single IN query covering all parents at that level.
func (b *Builder) loadIncludes(ctx context.Context, docs []schema.Document) error {
	for _, spec := range b.includes {
		if err := b.loadRelationChain(ctx, b.model, docs, spec, spec.Relations); err != nil {
			return fmt.Errorf("failed to include %q: %w", spec.Path(), err)
		}
	}
	return nil
}

func (b *Builder) loadRelationChain(ctx context.Context, model *schema.Model, parents []schema.Document, spec query.IncludeSpec, chain []string) error {
	if len(chain) == 0 || len(parents) == 0 {
		return nil
	}
	name := chain[0]
	rel, ok := model.Relation(name)
	if !ok || rel.Model == nil {
		return fmt.Errorf("unknown relation %q on %q", name, model.Resource)
	}

	keys := make([]any, 0, len(parents))
	seen := make(map[any]struct{}, len(parents))
	for _, parent := range parents {
		key, present := parent[rel.LocalColumn]
		if !present || key == nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	var childRows []schema.Document
	if len(keys) > 0 {
		child := NewBuilder(b.db, rel.Model, b.logger)
		// Projection and refinement scope to the terminal relation of the
		// chain; intermediate levels load whole rows so traversal keys stay
		// available.
		if len(chain) == 1 {
			if len(spec.Projection) > 0 {
				fields := ensureColumn(spec.Projection, rel.RemoteColumn)
				if err := child.Select(fields); err != nil {
					return err
				}
			}
			if spec.Refine != nil {
				if err := spec.Refine.Refine(child); err != nil {
					return err
				}
			}
		}
		var err error
		childRows, err = child.rowsIn(ctx, rel.RemoteColumn, keys)
		if err != nil {
			return err
		}
	}

	byKey := make(map[any][]schema.Document, len(childRows))
	for _, row := range childRows {
		key := row[rel.RemoteColumn]
		byKey[key] = append(byKey[key], row)
	}
	for _, parent := range parents {
		matches := byKey[parent[rel.LocalColumn]]
		switch rel.Kind {
		case schema.BelongsTo:
			if len(matches) > 0 {
				parent[name] = matches[0]
			} else {
				parent[name] = nil
			}
		default:
			if matches == nil {
				matches = []schema.Document{}
			}
			parent[name] = matches
		}
	}

	return b.loadRelationChain(ctx, rel.Model, childRows, spec, chain[1:])
}

// rowsIn executes the builder's query constrained to the given key set on
// one column of the primary table.
func (b *Builder) rowsIn(ctx context.Context, column string, keys []any) ([]schema.Document, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	b.wheres = append(b.wheres, fmt.Sprintf("%s.%s IN (%s)",
		quoteIdentifier(rootAlias), quoteIdentifier(column), placeholders))
	b.args = append(b.args, keys...)
	return b.Rows(ctx)
}

// ensureColumn appends a plain column to a projection when it is absent,
// without mutating the original slice.
func ensureColumn(fields []query.ProjectionField, column string) []query.ProjectionField {
	for _, f := range fields {
		if !f.Aggregate() && f.Column == column {
			return fields
		}
	}
	out := make([]query.ProjectionField, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, query.ProjectionField{Column: column})
}
