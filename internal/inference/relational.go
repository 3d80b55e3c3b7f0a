package inference

import (
	"context"
	"strings"
	"time"

	"github.com/nucleus/datapuur/internal/core"
)

// Introspector exposes the column metadata and a sample row of a table.
type Introspector interface {
	Columns(ctx context.Context, table string) ([]core.ColumnMeta, error)
	SampleRow(ctx context.Context, table string) (map[string]any, error)
}

// InferRelational maps declared column types onto field types. Samples come
// from a single fetched row; an empty table leaves them nil.
func InferRelational(ctx context.Context, in Introspector, table string) (*core.Schema, error) {
	cols, err := in.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, core.NotFoundError("Table '%s' not found", table)
	}
	sample, err := in.SampleRow(ctx, table)
	if err != nil {
		return nil, err
	}
	return RelationalSchema(table, cols, sample), nil
}

// RelationalSchema builds a schema from column metadata and an optional sample row.
func RelationalSchema(table string, cols []core.ColumnMeta, sample map[string]any) *core.Schema {
	out := &core.Schema{Name: table, Fields: make([]core.Field, 0, len(cols))}
	for _, c := range cols {
		out.Fields = append(out.Fields, core.Field{
			Name:     c.Name,
			Type:     MapSQLType(c.DataType),
			Nullable: c.Nullable,
			Sample:   SQLSample(sample[c.Name]),
		})
	}
	return out
}

// MapSQLType maps a declared SQL type name onto a field type.
func MapSQLType(declared string) core.FieldType {
	t := strings.ToLower(declared)
	switch {
	case strings.Contains(t, "int") && !strings.Contains(t, "interval") && !strings.Contains(t, "point"):
		return core.TypeInteger
	case strings.Contains(t, "float"), strings.Contains(t, "double"),
		strings.Contains(t, "decimal"), strings.Contains(t, "numeric"),
		strings.Contains(t, "real"), strings.Contains(t, "money"):
		return core.TypeFloat
	case strings.Contains(t, "bool"), t == "bit":
		return core.TypeBoolean
	case strings.Contains(t, "timestamp"),
		strings.Contains(t, "date") && strings.Contains(t, "time"):
		return core.TypeDatetime
	case strings.Contains(t, "date"):
		return core.TypeDate
	case strings.Contains(t, "json"):
		return core.TypeObject
	}
	return core.TypeString
}

// SQLSample renders a scanned driver value for display.
func SQLSample(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(DatetimeLayout)
	}
	return v
}
