package sink

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nucleus/datapuur/internal/core"
)

var datetimeLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ConvertValue converts a source value into the physical value stored for
// a column of type t. nil stays nil.
func ConvertValue(v any, t core.FieldType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case core.TypeInteger:
		return toInt64(v)
	case core.TypeFloat:
		return toFloat64(v)
	case core.TypeBoolean:
		return toBool(v)
	case core.TypeDate:
		ts, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return int32(math.Floor(float64(ts.Unix()) / 86400)), nil
	case core.TypeDatetime:
		ts, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return ts.UnixMilli(), nil
	case core.TypeObject, core.TypeArray:
		return toJSONText(v)
	}
	return toText(v), nil
}

func toInt64(v any) (any, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows integer", t)
		}
		return int64(t), nil
	case float64:
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("value %v is not an integer", t)
		}
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	}
	return nil, fmt.Errorf("cannot convert %T to integer", v)
}

func toFloat64(v any) (any, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, err
		}
		f = parsed
	default:
		i, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %T to float", v)
		}
		f = float64(i.(int64))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, nil
	}
	return f, nil
}

func toBool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "true") || s == "1" {
			return true, nil
		}
		if strings.EqualFold(s, "false") || s == "0" {
			return false, nil
		}
		return nil, fmt.Errorf("cannot convert %q to boolean", t)
	case int64:
		return t != 0, nil
	case json.Number:
		return t.String() != "0", nil
	}
	return nil, fmt.Errorf("cannot convert %T to boolean", v)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range datetimeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as a date or datetime", t)
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to a date or datetime", v)
}

func toJSONText(v any) (any, error) {
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format("2006-01-02T15:04:05")
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
