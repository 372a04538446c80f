package params

import "fmt"

// ShapeError reports a parameter whose value has the wrong shape, such as a
// filter operator whose value is not a mapping. Shape errors are raised
// before the store is touched and are never retried.
type ShapeError struct {
	Param string // the offending parameter key, dotted for nested keys
	Want  string // description of the expected shape
	Got   any    // the value actually supplied
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("parameter %q must be %s, got %T", e.Param, e.Want, e.Got)
}
