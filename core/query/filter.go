package query

import (
	"fmt"
	"sort"

	"github.com/asaidimu/go-jsonapi-params/core/params"
	"github.com/asaidimu/go-jsonapi-params/core/schema"
)

// nullLiteral is the only spelling that produces a null condition through
// eq, not and like.
const nullLiteral = "null"

// ComparisonListError reports a comma list supplied to an ordering operator,
// which accepts exactly one value.
type ComparisonListError struct {
	Op    Operator
	Field string
}

func (e *ComparisonListError) Error() string {
	return fmt.Sprintf("operator %q on field %q accepts a single value, got a list", e.Op, e.Field)
}

// CompileFilter turns a filter specification into predicate clauses. A bare
// top-level key is an eq condition on that field; a reserved operator key
// holds a mapping of field to raw value interpreted under that operator.
// Clauses combine with AND; values within a clause follow the operator's
// own composition. Output order is deterministic: top-level keys sorted,
// then fields sorted within each operator mapping.
func CompileFilter(spec map[string]any, naming schema.NamingConvention) ([]FilterClause, error) {
	if len(spec) == 0 {
		return nil, nil
	}
	clauses := make([]FilterClause, 0, len(spec))
	for _, key := range sortedKeys(spec) {
		value := spec[key]
		op, reserved := reservedOperators[key]
		if !reserved {
			clause, err := compileClause(OperatorEq, key, value, naming)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
			continue
		}
		fields, ok := value.(map[string]any)
		if !ok {
			return nil, &params.ShapeError{Param: "filter." + key, Want: "a mapping of field to value", Got: value}
		}
		for _, field := range sortedKeys(fields) {
			clause, err := compileClause(op, field, fields[field], naming)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
		}
	}
	return clauses, nil
}

func compileClause(op Operator, key string, raw any, naming schema.NamingConvention) (FilterClause, error) {
	values := tokenizeValues(raw)
	if len(values) == 0 {
		return FilterClause{}, &params.ShapeError{Param: "filter." + key, Want: "a non-empty value", Got: raw}
	}
	switch op {
	case OperatorLt, OperatorLte, OperatorGt, OperatorGte:
		if len(values) > 1 {
			return FilterClause{}, &ComparisonListError{Op: op, Field: key}
		}
	}
	path := params.ParseFieldPath(key)
	path.Attribute = naming.ToColumn(path.Attribute)
	return FilterClause{Op: op, Path: path, Values: values}, nil
}

// tokenizeValues flattens a raw filter value into atomic values. Strings
// split on unescaped commas; each atomic string equal to the literal text
// "null" becomes the null sentinel. Non-string scalars pass through as
// single values; lists flatten element-wise.
func tokenizeValues(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return []any{Null}
	case string:
		tokens := params.SplitValues(v)
		values := make([]any, len(tokens))
		for i, tok := range tokens {
			if tok == nullLiteral {
				values[i] = Null
			} else {
				values[i] = tok
			}
		}
		return values
	case []string:
		var values []any
		for _, item := range v {
			values = append(values, tokenizeValues(item)...)
		}
		return values
	case []any:
		var values []any
		for _, item := range v {
			values = append(values, tokenizeValues(item)...)
		}
		return values
	default:
		return []any{v}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
