// Package params parses the raw, JSON-shaped parameter object of a query
// request into an immutable ParameterSet. It owns the low-level grammar
// shared by the compilers: comma-list tokenization with escaping and dotted
// field-path resolution. Shape violations are reported synchronously as
// *ShapeError, before any store interaction.
package params

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Page holds offset pagination bounds. A nil *Page means no pagination is
// applied and no page count is computed.
type Page struct {
	Limit  int `mapstructure:"limit" json:"limit"`
	Offset int `mapstructure:"offset" json:"offset"`
}

// ParameterSet is the parsed form of one request's query parameters. It is
// built once per query invocation and read-only afterwards.
type ParameterSet struct {
	Filter  map[string]any
	Sort    []string
	Fields  map[string][]string
	Include []any // relation path strings or single-entry maps to refinements
	Group   []string
	Page    *Page
}

// Parse validates the shape of a raw parameter object and builds a
// ParameterSet from it. A nil or empty map parses to an empty set. Only the
// shape is validated here; field and relation existence is the store's
// concern and fails at execution time.
func Parse(raw map[string]any) (*ParameterSet, error) {
	set := &ParameterSet{}
	for key, value := range raw {
		if value == nil {
			continue
		}
		var err error
		switch key {
		case "filter":
			set.Filter, err = asMapping(key, value)
		case "sort":
			set.Sort, err = asStringList(key, value)
		case "fields":
			set.Fields, err = asFieldsMapping(key, value)
		case "include":
			set.Include, err = asList(key, value)
		case "group":
			set.Group, err = asStringList(key, value)
		case "page":
			set.Page, err = asPage(key, value)
		default:
			err = &ShapeError{Param: key, Want: "one of filter, sort, fields, include, group, page", Got: value}
		}
		if err != nil {
			return nil, err
		}
	}
	return set, nil
}

func asMapping(param string, v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ShapeError{Param: param, Want: "a mapping", Got: v}
	}
	return m, nil
}

func asList(param string, v any) ([]any, error) {
	l, ok := v.([]any)
	if !ok {
		return nil, &ShapeError{Param: param, Want: "a list", Got: v}
	}
	return l, nil
}

func asStringList(param string, v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, &ShapeError{Param: fmt.Sprintf("%s[%d]", param, i), Want: "a string", Got: item}
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, &ShapeError{Param: param, Want: "a list of strings", Got: v}
	}
}

func asFieldsMapping(param string, v any) (map[string][]string, error) {
	switch m := v.(type) {
	case map[string][]string:
		return m, nil
	case map[string]any:
		out := make(map[string][]string, len(m))
		for resource, fields := range m {
			list, err := asStringList(param+"."+resource, fields)
			if err != nil {
				return nil, err
			}
			out[resource] = list
		}
		return out, nil
	default:
		return nil, &ShapeError{Param: param, Want: "a mapping of resource type to field list", Got: v}
	}
}

// asPage accepts either an already-typed Page or a loosely-typed mapping,
// decoded weakly so JSON numbers and numeric strings both work.
func asPage(param string, v any) (*Page, error) {
	switch p := v.(type) {
	case *Page:
		copied := *p
		return &copied, nil
	case Page:
		return &p, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ShapeError{Param: param, Want: "a mapping with limit and offset", Got: v}
	}
	page := &Page{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           page,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build page decoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return nil, &ShapeError{Param: param, Want: "integer limit and offset", Got: v}
	}
	if page.Limit < 0 || page.Offset < 0 {
		return nil, &ShapeError{Param: param, Want: "non-negative limit and offset", Got: v}
	}
	return page, nil
}
