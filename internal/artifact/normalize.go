package artifact

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/sink"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02T15:04:05"
)

// Normalize converts a raw Parquet value of column into the value handed to
// callers: dates and timestamps as ISO text, JSON columns as raw JSON,
// integers as int64 and floats as float64. Every read path goes through it.
func Normalize(value any, col sink.Column) any {
	if value == nil {
		return nil
	}
	switch col.Type {
	case core.TypeDate:
		if days, ok := asInt64(value); ok {
			return time.Unix(days*86400, 0).UTC().Format(dateLayout)
		}
	case core.TypeDatetime:
		if ms, ok := asInt64(value); ok {
			return time.UnixMilli(ms).UTC().Format(datetimeLayout)
		}
	case core.TypeObject, core.TypeArray:
		if s, ok := value.(string); ok && json.Valid([]byte(s)) {
			return json.RawMessage(s)
		}
	case core.TypeInteger:
		if n, ok := asInt64(value); ok {
			return n
		}
	case core.TypeFloat:
		switch v := value.(type) {
		case float32:
			return float64(v)
		case float64:
			return v
		}
	}
	return value
}

// Text renders a normalized value for delimited output. Nulls are empty.
func Text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.RawMessage:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(b)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

// normalizeRow applies Normalize to row i of t.
func normalizeRow(t *sink.Table, i int) []any {
	row := make([]any, len(t.Columns))
	for c, col := range t.Columns {
		row[c] = Normalize(t.Values[c][i], col)
	}
	return row
}
