package schema

import "github.com/iancoleman/strcase"

// NamingConvention converts between API-facing attribute names and storage
// column names. The compilers apply it to plain fields only; aggregate
// expressions pass through verbatim.
type NamingConvention interface {
	ToColumn(name string) string
	ToAttribute(name string) string
}

// SnakeCaseNaming maps camelCase attribute names onto snake_case columns.
type SnakeCaseNaming struct{}

func (SnakeCaseNaming) ToColumn(name string) string {
	return strcase.ToSnake(name)
}

func (SnakeCaseNaming) ToAttribute(name string) string {
	return strcase.ToLowerCamel(name)
}

// PassthroughNaming leaves names untouched.
type PassthroughNaming struct{}

func (PassthroughNaming) ToColumn(name string) string    { return name }
func (PassthroughNaming) ToAttribute(name string) string { return name }
