package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-jsonapi-params/core/params"
)

// CompileInclude turns an include specification into an ordered sequence of
// IncludeSpec. An entry is either a bare relation path string or a
// single-entry mapping from a relation path to a refinement callback.
// Nested paths like "pets.toy" are preserved verbatim; loading the
// intermediate relations along the path is the store's responsibility, and
// declaring both "pets" and "pets.toy" resolves each independently.
func CompileInclude(spec []any) ([]IncludeSpec, error) {
	includes := make([]IncludeSpec, 0, len(spec))
	for i, entry := range spec {
		switch v := entry.(type) {
		case string:
			includes = append(includes, IncludeSpec{Relations: strings.Split(v, ".")})
		case map[string]Refiner:
			if len(v) != 1 {
				return nil, &params.ShapeError{Param: fmt.Sprintf("include[%d]", i), Want: "a single relation path mapped to a refinement", Got: entry}
			}
			for path, refine := range v {
				includes = append(includes, IncludeSpec{Relations: strings.Split(path, "."), Refine: refine})
			}
		case map[string]any:
			if len(v) != 1 {
				return nil, &params.ShapeError{Param: fmt.Sprintf("include[%d]", i), Want: "a single relation path mapped to a refinement", Got: entry}
			}
			for path, raw := range v {
				refine, err := asRefiner(fmt.Sprintf("include[%d].%s", i, path), raw)
				if err != nil {
					return nil, err
				}
				includes = append(includes, IncludeSpec{Relations: strings.Split(path, "."), Refine: refine})
			}
		default:
			return nil, &params.ShapeError{Param: fmt.Sprintf("include[%d]", i), Want: "a relation path or a mapping to a refinement", Got: entry}
		}
	}
	return includes, nil
}

func asRefiner(param string, raw any) (Refiner, error) {
	switch r := raw.(type) {
	case Refiner:
		return r, nil
	case func(Builder) error:
		return RefinerFunc(r), nil
	default:
		return nil, &params.ShapeError{Param: param, Want: "a refinement callback", Got: raw}
	}
}
