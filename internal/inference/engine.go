// Package inference derives field names, types, nullability and sample
// values from raw delimited, tree-shaped and relational sources.
package inference

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nucleus/datapuur/internal/core"
)

// DefaultSampleSize bounds the number of rows or elements examined.
const DefaultSampleSize = 1000

const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02T15:04:05"
)

// Most general tag first.
var (
	delimitedPrecedence = []core.FieldType{
		core.TypeString, core.TypeDatetime, core.TypeDate,
		core.TypeBoolean, core.TypeFloat, core.TypeInteger,
	}
	treePrecedence = []core.FieldType{
		core.TypeObject, core.TypeArray, core.TypeString, core.TypeDatetime,
		core.TypeDate, core.TypeBoolean, core.TypeFloat, core.TypeInteger,
	}
)

// ClassifyText resolves the type tag of a non-empty text value.
func ClassifyText(v string) core.FieldType {
	s := strings.TrimSpace(v)
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return core.TypeInteger
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return core.TypeFloat
	}
	if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
		return core.TypeBoolean
	}
	return classifyTemporal(v)
}

// classifyTemporal only distinguishes date, datetime and string.
func classifyTemporal(v string) core.FieldType {
	if _, err := time.Parse(DateLayout, v); err == nil {
		return core.TypeDate
	}
	if _, err := time.Parse(DatetimeLayout, v); err == nil {
		return core.TypeDatetime
	}
	return core.TypeString
}

// accumulator collects the tags observed for one field.
type accumulator struct {
	name      string
	seen      map[core.FieldType]bool
	nullable  bool
	sample    any
	hasSample bool
}

func newAccumulator(name string) *accumulator {
	return &accumulator{name: name, seen: make(map[core.FieldType]bool)}
}

func (a *accumulator) observe(tag core.FieldType, sample any) {
	if tag == core.TypeNull {
		a.observeNull()
		return
	}
	a.seen[tag] = true
	if !a.hasSample {
		a.sample = sample
		a.hasSample = true
	}
}

func (a *accumulator) observeNull() {
	a.nullable = true
}

func (a *accumulator) field(precedence []core.FieldType) core.Field {
	f := core.Field{Name: a.name, Type: core.TypeString, Nullable: a.nullable, Sample: a.sample}
	for _, tag := range precedence {
		if a.seen[tag] {
			f.Type = tag
			break
		}
	}
	return f
}

// storable lists the tags a column of the key type can hold. Winners not
// listed (string, object, array) hold any tag.
var storable = map[core.FieldType][]core.FieldType{
	core.TypeInteger:  {core.TypeInteger},
	core.TypeFloat:    {core.TypeFloat, core.TypeInteger},
	core.TypeBoolean:  {core.TypeBoolean},
	core.TypeDate:     {core.TypeDate},
	core.TypeDatetime: {core.TypeDatetime, core.TypeDate},
}

// storedField is field with the type an artifact column needs to hold every
// observed value. A winner that cannot hold all of them is stored as string.
func (a *accumulator) storedField(precedence []core.FieldType) core.Field {
	f := a.field(precedence)
	allowed, ok := storable[f.Type]
	if !ok {
		return f
	}
	for tag := range a.seen {
		if !slices.Contains(allowed, tag) {
			f.Type = core.TypeString
			break
		}
	}
	return f
}

// fieldSet keeps accumulators in first-seen order.
type fieldSet struct {
	order []*accumulator
	index map[string]*accumulator
}

func newFieldSet() *fieldSet {
	return &fieldSet{index: make(map[string]*accumulator)}
}

func (s *fieldSet) get(name string) *accumulator {
	if acc, ok := s.index[name]; ok {
		return acc
	}
	acc := newAccumulator(name)
	s.index[name] = acc
	s.order = append(s.order, acc)
	return acc
}

func (s *fieldSet) schema(name string, precedence []core.FieldType) *core.Schema {
	out := &core.Schema{Name: name, Fields: make([]core.Field, 0, len(s.order))}
	for _, acc := range s.order {
		out.Fields = append(out.Fields, acc.field(precedence))
	}
	return out
}

func (s *fieldSet) storedSchema(name string, precedence []core.FieldType) *core.Schema {
	out := &core.Schema{Name: name, Fields: make([]core.Field, 0, len(s.order))}
	for _, acc := range s.order {
		out.Fields = append(out.Fields, acc.storedField(precedence))
	}
	return out
}

func withinSample(n, sampleSize int) bool {
	return sampleSize <= 0 || n < sampleSize
}
