// Package schema describes the model metadata the translator consumes: the
// storage table behind a resource type, its traversable relations, and the
// attribute naming convention. The metadata is supplied by the caller; the
// engine performs no schema validation of its own, so unknown columns and
// relations fail at the store at execution time.
package schema

// Document is a single materialized row, keyed by column or alias name.
type Document map[string]any

// RelationKind distinguishes how a relation's keys line up.
type RelationKind string

const (
	// HasMany joins the parent's local column to a foreign key column on
	// the related table; eager loads attach a list of documents.
	HasMany RelationKind = "hasMany"
	// BelongsTo joins a foreign key column on the parent to the related
	// table's key column; eager loads attach a single document.
	BelongsTo RelationKind = "belongsTo"
)

// Relation describes one traversable edge from a model to a related model.
type Relation struct {
	Kind         RelationKind
	Model        *Model
	LocalColumn  string // column on the owning model's table
	RemoteColumn string // column on the related model's table
}

// Model is the caller-supplied metadata for one resource type.
type Model struct {
	Resource    string // resource type name, as used in fields mappings
	Table       string
	IDAttribute string // attribute whose single-value eq filter implies a unique lookup
	Relations   map[string]*Relation
	Naming      NamingConvention
}

// NamingOrDefault returns the model's naming convention, defaulting to
// passthrough when none was supplied.
func (m *Model) NamingOrDefault() NamingConvention {
	if m == nil || m.Naming == nil {
		return PassthroughNaming{}
	}
	return m.Naming
}

// Relation resolves a relation by name. The second return is false when the
// model does not define it.
func (m *Model) Relation(name string) (*Relation, bool) {
	if m == nil {
		return nil, false
	}
	r, ok := m.Relations[name]
	return r, ok
}
