package params

import "strings"

// FieldPath is a field key split into its relation traversal and the
// terminal attribute. Relations is empty for a local field; a non-empty
// path denotes a dotted traversal, e.g. "pets.toy.type" resolves to
// relations [pets, toy] and attribute "type".
type FieldPath struct {
	Relations []string
	Attribute string
}

// ParseFieldPath splits a dotted field key. The final segment is the
// attribute; everything before it names relations in traversal order. No
// existence validation happens here: unresolvable paths surface as store
// errors at execution time.
func ParseFieldPath(key string) FieldPath {
	segments := strings.Split(key, ".")
	return FieldPath{
		Relations: segments[:len(segments)-1],
		Attribute: segments[len(segments)-1],
	}
}

// Local reports whether the path refers to an attribute of the primary
// resource rather than a related one.
func (p FieldPath) Local() bool {
	return len(p.Relations) == 0
}

// String reassembles the dotted form of the path.
func (p FieldPath) String() string {
	if p.Local() {
		return p.Attribute
	}
	return strings.Join(p.Relations, ".") + "." + p.Attribute
}
