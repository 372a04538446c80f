// Package sqlite implements the query.Builder capability over database/sql
// and a SQLite database. It renders compiled clauses into parameterized SQL,
// resolves relation paths into LEFT JOINs shared per path, eager-loads
// included relations, and materializes rows into schema.Document maps.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/asaidimu/go-jsonapi-params/core/params"
	"github.com/asaidimu/go-jsonapi-params/core/query"
	"github.com/asaidimu/go-jsonapi-params/core/schema"
)

// rootAlias qualifies the primary model's table in every generated query.
const rootAlias = "t0"

// comparators maps the ordering operators onto their SQL forms.
var comparators = map[query.Operator]string{
	query.OperatorLt:  "<",
	query.OperatorLte: "<=",
	query.OperatorGt:  ">",
	query.OperatorGte: ">=",
}

// Builder accumulates compiled clauses for one query against one model. It
// is single-use: build, execute, discard. All schema knowledge lives in the
// caller-supplied model metadata; unknown columns surface as SQLite errors
// at execution time.
type Builder struct {
	db         *sql.DB
	model      *schema.Model
	logger     *zap.Logger
	projection []query.ProjectionField
	wheres     []string
	args       []any
	joins      []string
	aliases    map[string]joinTarget
	orderBys   []string
	groupBys   []string
	limit      int
	offset     int
	includes   []query.IncludeSpec
}

// joinTarget is a resolved relation path: the table alias it joins under
// and the model it lands on.
type joinTarget struct {
	alias string
	model *schema.Model
}

// NewBuilder creates a single-use builder for one query against the model.
func NewBuilder(db *sql.DB, model *schema.Model, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		db:      db,
		model:   model,
		logger:  logger,
		aliases: make(map[string]joinTarget),
		limit:   -1,
		offset:  -1,
	}
}

// Ensure Builder implements the store capability surface.
var _ query.Builder = (*Builder)(nil)

// quoteIdentifier properly quotes an identifier for SQLite.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Join ensures the LEFT JOIN chain for a relation path exists. Paths are
// deduplicated by prefix, so clauses and sort keys on the same path share
// one join.
func (b *Builder) Join(relations []string) error {
	_, err := b.join(relations)
	return err
}

func (b *Builder) join(relations []string) (joinTarget, error) {
	target := joinTarget{alias: rootAlias, model: b.model}
	for i := range relations {
		path := strings.Join(relations[:i+1], ".")
		if existing, ok := b.aliases[path]; ok {
			target = existing
			continue
		}
		rel, ok := target.model.Relation(relations[i])
		if !ok || rel.Model == nil {
			return joinTarget{}, fmt.Errorf("unknown relation %q on %q", relations[i], target.model.Resource)
		}
		alias := fmt.Sprintf("t%d", len(b.aliases)+1)
		b.joins = append(b.joins, fmt.Sprintf(
			"LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			quoteIdentifier(rel.Model.Table), quoteIdentifier(alias),
			quoteIdentifier(target.alias), quoteIdentifier(rel.LocalColumn),
			quoteIdentifier(alias), quoteIdentifier(rel.RemoteColumn),
		))
		target = joinTarget{alias: alias, model: rel.Model}
		b.aliases[path] = target
	}
	return target, nil
}

// accessor renders the qualified column a clause or sort key refers to,
// establishing any joins its relation path needs.
func (b *Builder) accessor(path params.FieldPath) (string, error) {
	target := joinTarget{alias: rootAlias, model: b.model}
	if !path.Local() {
		var err error
		target, err = b.join(path.Relations)
		if err != nil {
			return "", err
		}
	}
	return quoteIdentifier(target.alias) + "." + quoteIdentifier(path.Attribute), nil
}

// Where renders one predicate clause. Values under eq and like OR together,
// values under not AND together, and the ordering comparisons take exactly
// one value — the compiler guarantees that. Distinct clauses AND together.
func (b *Builder) Where(clause query.FilterClause) error {
	accessor, err := b.accessor(clause.Path)
	if err != nil {
		return err
	}
	if len(clause.Values) == 0 {
		return fmt.Errorf("filter clause on %q has no values", clause.Path.String())
	}

	var predicates []string
	connector := " OR "
	switch clause.Op {
	case query.OperatorEq:
		for _, v := range clause.Values {
			if query.IsNull(v) {
				predicates = append(predicates, accessor+" IS NULL")
				continue
			}
			predicates = append(predicates, accessor+" = ?")
			b.args = append(b.args, v)
		}
	case query.OperatorNot:
		connector = " AND "
		for _, v := range clause.Values {
			if query.IsNull(v) {
				predicates = append(predicates, accessor+" IS NOT NULL")
				continue
			}
			predicates = append(predicates, accessor+" != ?")
			b.args = append(b.args, v)
		}
	case query.OperatorLike:
		for _, v := range clause.Values {
			if query.IsNull(v) {
				predicates = append(predicates, accessor+" IS NULL")
				continue
			}
			predicates = append(predicates, accessor+" LIKE ?")
			b.args = append(b.args, "%"+fmt.Sprintf("%v", v)+"%")
		}
	case query.OperatorLt, query.OperatorLte, query.OperatorGt, query.OperatorGte:
		predicates = append(predicates, fmt.Sprintf("%s %s ?", accessor, comparators[clause.Op]))
		b.args = append(b.args, clause.Values[0])
	default:
		return fmt.Errorf("unsupported filter operator: %s", clause.Op)
	}

	if len(predicates) == 1 {
		b.wheres = append(b.wheres, predicates[0])
	} else {
		b.wheres = append(b.wheres, "("+strings.Join(predicates, connector)+")")
	}
	return nil
}

// OrderBy appends one sort key; call order is ORDER BY precedence.
func (b *Builder) OrderBy(key query.SortKey) error {
	accessor, err := b.accessor(key.Path)
	if err != nil {
		return err
	}
	b.orderBys = append(b.orderBys, accessor+" "+strings.ToUpper(string(key.Direction)))
	return nil
}

// Select sets the projection. Aggregate fields render verbatim, aliased by
// their function name; plain fields qualify against the primary table.
func (b *Builder) Select(fields []query.ProjectionField) error {
	b.projection = fields
	return nil
}

// GroupBy appends grouping terms resolved with projection rules.
func (b *Builder) GroupBy(fields []query.ProjectionField) error {
	b.groupBys = append(b.groupBys, b.renderFields(fields, false)...)
	return nil
}

// Limit bounds the primary row window.
func (b *Builder) Limit(n int) {
	b.limit = n
}

// Offset shifts the primary row window.
func (b *Builder) Offset(n int) {
	b.offset = n
}

// Include registers a relation chain for eager loading after the primary
// rows are fetched.
func (b *Builder) Include(spec query.IncludeSpec) error {
	if len(spec.Relations) == 0 {
		return fmt.Errorf("include requires at least one relation")
	}
	b.includes = append(b.includes, spec)
	return nil
}

func (b *Builder) renderFields(fields []query.ProjectionField, aliased bool) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Aggregate() {
			expr := fmt.Sprintf("%s(%s)", f.Function, f.Argument)
			if aliased {
				expr += " AS " + quoteIdentifier(f.Function)
			}
			out = append(out, expr)
			continue
		}
		out = append(out, quoteIdentifier(rootAlias)+"."+quoteIdentifier(f.Column))
	}
	return out
}

// buildSelectSQL assembles the SELECT statement from the accumulated
// clauses. SQLite requires LIMIT before OFFSET, so OFFSET renders only when
// a limit is set.
func (b *Builder) buildSelectSQL() string {
	selects := b.renderFields(b.projection, true)
	if len(selects) == 0 {
		selects = []string{quoteIdentifier(rootAlias) + ".*"}
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + strings.Join(selects, ", "))
	sb.WriteString(" FROM " + quoteIdentifier(b.model.Table) + " AS " + quoteIdentifier(rootAlias))
	for _, join := range b.joins {
		sb.WriteString(" " + join)
	}
	if len(b.wheres) > 0 {
		sb.WriteString(" WHERE " + strings.Join(b.wheres, " AND "))
	}
	if len(b.groupBys) > 0 {
		sb.WriteString(" GROUP BY " + strings.Join(b.groupBys, ", "))
	}
	if len(b.orderBys) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(b.orderBys, ", "))
	}
	if b.limit > -1 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
		if b.offset > 0 {
			sb.WriteString(fmt.Sprintf(" OFFSET %d", b.offset))
		}
	}
	return sb.String() + ";"
}

// Count reports the number of matching primary rows under the accumulated
// predicates and joins, ignoring limit and offset. Joins can fan primary
// rows out, so with joins present the count collapses to distinct root ID
// values.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	expr := "COUNT(*)"
	if len(b.joins) > 0 {
		idColumn := b.model.NamingOrDefault().ToColumn(b.model.IDAttribute)
		if idColumn != "" {
			expr = fmt.Sprintf("COUNT(DISTINCT %s.%s)", quoteIdentifier(rootAlias), quoteIdentifier(idColumn))
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + expr)
	sb.WriteString(" FROM " + quoteIdentifier(b.model.Table) + " AS " + quoteIdentifier(rootAlias))
	for _, join := range b.joins {
		sb.WriteString(" " + join)
	}
	if len(b.wheres) > 0 {
		sb.WriteString(" WHERE " + strings.Join(b.wheres, " AND "))
	}
	sqlText := sb.String() + ";"

	b.logger.Debug("executing count", zap.String("sql", sqlText))
	var total int64
	if err := b.db.QueryRowContext(ctx, sqlText, b.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count matching rows: %w", err)
	}
	return total, nil
}

// Rows executes the accumulated query, materializes the primary rows and
// resolves any registered includes against them.
func (b *Builder) Rows(ctx context.Context) ([]schema.Document, error) {
	// Stitching eager loads onto a projected result needs the local join
	// keys of the first relation level present in the selection.
	if len(b.projection) > 0 {
		for _, spec := range b.includes {
			if rel, ok := b.model.Relation(spec.Relations[0]); ok {
				b.projection = ensureColumn(b.projection, rel.LocalColumn)
			}
		}
	}

	sqlText := b.buildSelectSQL()
	b.logger.Debug("executing select", zap.String("sql", sqlText), zap.Int("args", len(b.args)))
	rows, err := b.db.QueryContext(ctx, sqlText, b.args...)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	docs, err := readRows(rows)
	if err != nil {
		return nil, err
	}
	if len(b.includes) > 0 && len(docs) > 0 {
		if err := b.loadIncludes(ctx, docs); err != nil {
			return nil, err
		}
	}
	return docs, nil
}
