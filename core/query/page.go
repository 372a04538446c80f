package query

import "github.com/asaidimu/go-jsonapi-params/core/params"

// CompilePage selects the effective pagination for one call: explicit
// per-call values override the registration-time default; with neither, the
// result is nil and no limit, offset or page count applies. The input pages
// are copied so the caller's values stay immutable.
func CompilePage(page, fallback *params.Page) *params.Page {
	if page != nil {
		copied := *page
		return &copied
	}
	if fallback != nil {
		copied := *fallback
		return &copied
	}
	return nil
}

// PageCount is the number of pages of size limit needed to cover total
// matching rows, independent of the current offset. A non-positive limit
// yields zero.
func PageCount(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
