package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/asaidimu/go-jsonapi-params/core/schema"
)

// readRows materializes a result set into document maps, normalizing
// driver-level byte slices into strings.
func readRows(rows *sql.Rows) ([]schema.Document, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var results []schema.Document
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		doc := make(schema.Document, len(columns))
		for i, column := range columns {
			switch v := values[i].(type) {
			case []byte:
				doc[column] = string(v)
			default:
				doc[column] = v
			}
		}
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return results, nil
}
