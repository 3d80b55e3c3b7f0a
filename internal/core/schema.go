// Package core holds the domain types shared by the ingestion pipeline:
// schemas, jobs, uploaded sources, batches and the coded error taxonomy.
package core

// FieldType is the inferred type tag of a field.
type FieldType string

const (
	TypeInteger  FieldType = "integer"
	TypeFloat    FieldType = "float"
	TypeBoolean  FieldType = "boolean"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypeString   FieldType = "string"
	TypeObject   FieldType = "object"
	TypeArray    FieldType = "array"
	TypeNull     FieldType = "null"
)

// Field describes one column of a source or artifact.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Nullable bool      `json:"nullable"`
	Sample   any       `json:"sample"`
}

// Schema is an ordered list of fields.
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// FieldNames returns the field names in order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Clone returns a copy of the schema that shares no slices with s.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{Name: s.Name, Fields: make([]Field, len(s.Fields))}
	copy(out.Fields, s.Fields)
	return out
}

// Batch is a contiguous group of rows aligned to a schema's field order.
type Batch struct {
	Rows [][]any
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int { return len(b.Rows) }

// ColumnMeta is the declared metadata of a relational column.
type ColumnMeta struct {
	Name     string
	DataType string
	Nullable bool
	Position int
}
