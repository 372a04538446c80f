package query

import (
	"strings"

	"github.com/asaidimu/go-jsonapi-params/core/params"
	"github.com/asaidimu/go-jsonapi-params/core/schema"
)

// CompileSort turns a sort specification into ordered sort keys. A leading
// '-' on an entry selects descending order and is stripped; its absence
// selects ascending. Input order is preserved and determines ORDER BY
// precedence; no re-ranking happens.
func CompileSort(spec []string, naming schema.NamingConvention) []SortKey {
	keys := make([]SortKey, 0, len(spec))
	for _, entry := range spec {
		direction := SortAsc
		if strings.HasPrefix(entry, "-") {
			direction = SortDesc
			entry = entry[1:]
		}
		path := params.ParseFieldPath(entry)
		path.Attribute = naming.ToColumn(path.Attribute)
		keys = append(keys, SortKey{Path: path, Direction: direction})
	}
	return keys
}
