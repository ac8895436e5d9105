package model

// Category identifies one of the per-symbol cost tables.
type Category string

// Cost categories, named after their store tables
const (
	CategorySource              Category = "source"
	CategoryInstantiateClass    Category = "instantiate_class"
	CategoryInstantiateFunction Category = "instantiate_function"
	CategoryParseClass          Category = "parse_class"
	CategoryParseTemplate       Category = "parse_template"
)

// Categories lists every cost category in table order.
var Categories = []Category{
	CategorySource,
	CategoryInstantiateClass,
	CategoryInstantiateFunction,
	CategoryParseClass,
	CategoryParseTemplate,
}

// ObjectsTable is the name of the compiled object table.
const ObjectsTable = "objects"

// String returns the table name of the category.
func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory resolves a table name to a Category.
func ParseCategory(name string) (Category, bool) {
	c := Category(name)
	return c, c.Valid()
}

// DefaultTracePattern matches the files written by clang -ftime-trace.
const DefaultTracePattern = "*.json"

// DefaultDatabaseName is the store file created in the work directory.
const DefaultDatabaseName = "tracedb.sqlite"
