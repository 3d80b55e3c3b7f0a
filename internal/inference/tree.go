package inference

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/nucleus/datapuur/internal/core"
)

// ValueField names the single field of documents whose elements are not objects.
const ValueField = "value"

// TreeDocument is a decoded JSON document flattened into row elements.
type TreeDocument struct {
	Elements []any
	// Keyed is true when elements are objects projected by key.
	Keyed bool
	// keys holds the source key order of each object element.
	keys [][]string
}

// DecodeTree parses a whole JSON document. Numbers are kept as json.Number
// and the key order of top-level objects is preserved.
func DecodeTree(r io.Reader) (*TreeDocument, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return &TreeDocument{}, nil
	}
	if err != nil {
		return nil, core.SchemaError(err, "Invalid JSON file")
	}

	td := &TreeDocument{}
	if delim, ok := tok.(json.Delim); ok && delim == '[' {
		for dec.More() {
			v, keys, err := parseValue(dec)
			if err != nil {
				return nil, core.SchemaError(err, "Invalid JSON file")
			}
			td.Elements = append(td.Elements, v)
			td.keys = append(td.keys, keys)
		}
		if _, err := dec.Token(); err != nil {
			return nil, core.SchemaError(err, "Invalid JSON file")
		}
	} else {
		v, keys, err := parseToken(dec, tok)
		if err != nil {
			return nil, core.SchemaError(err, "Invalid JSON file")
		}
		td.Elements = []any{v}
		td.keys = [][]string{keys}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, core.SchemaError(err, "Invalid JSON file: trailing content")
	}
	if len(td.Elements) > 0 {
		_, td.Keyed = td.Elements[0].(map[string]any)
	}
	return td, nil
}

// Len returns the number of row elements.
func (d *TreeDocument) Len() int { return len(d.Elements) }

func parseValue(dec *json.Decoder) (any, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (any, []string, error) {
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil, nil
	}
	switch delim {
	case '{':
		obj := make(map[string]any)
		var keys []string
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, nil, fmt.Errorf("object key must be a string, got %v", kt)
			}
			v, _, err := parseValue(dec)
			if err != nil {
				return nil, nil, err
			}
			if _, dup := obj[key]; !dup {
				keys = append(keys, key)
			}
			obj[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, nil, err
		}
		return obj, keys, nil
	case '[':
		arr := make([]any, 0)
		for dec.More() {
			v, _, err := parseValue(dec)
			if err != nil {
				return nil, nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, nil, err
		}
		return arr, nil, nil
	}
	return nil, nil, fmt.Errorf("unexpected delimiter %v", delim)
}

// DecodeTreeBytes is DecodeTree over an in-memory document.
func DecodeTreeBytes(data []byte) (*TreeDocument, error) {
	return DecodeTree(bytes.NewReader(data))
}

// InferTree infers a schema from up to sampleSize elements of r.
func InferTree(r io.Reader, name string, sampleSize int) (*core.Schema, error) {
	doc, err := DecodeTree(r)
	if err != nil {
		return nil, err
	}
	return InferTreeDocument(doc, name, sampleSize), nil
}

// InferTreeDocument infers a schema over an already decoded document.
// Keys are the union of sampled element keys in first-seen order.
func InferTreeDocument(doc *TreeDocument, name string, sampleSize int) *core.Schema {
	return scanTree(doc, sampleSize).schema(name, treePrecedence)
}

// StoredTreeSchema is the artifact schema of every element of doc: mixed
// columns that no typed column can hold are stored as string.
func StoredTreeSchema(doc *TreeDocument, name string) *core.Schema {
	return scanTree(doc, 0).storedSchema(name, treePrecedence)
}

func scanTree(doc *TreeDocument, sampleSize int) *fieldSet {
	fields := newFieldSet()
	if len(doc.Elements) == 0 {
		return fields
	}
	if !doc.Keyed {
		acc := fields.get(ValueField)
		for i, elem := range doc.Elements {
			if !withinSample(i, sampleSize) {
				break
			}
			acc.observe(TreeTag(elem), TreeSample(elem))
		}
		return fields
	}

	for i, elem := range doc.Elements {
		if !withinSample(i, sampleSize) {
			break
		}
		obj, _ := elem.(map[string]any)
		for _, key := range doc.keys[i] {
			if _, known := fields.index[key]; !known && i > 0 {
				fields.get(key).observeNull()
			}
			fields.get(key)
		}
		for _, acc := range fields.order {
			v, ok := obj[acc.name]
			if !ok {
				acc.observeNull()
				continue
			}
			acc.observe(TreeTag(v), TreeSample(v))
		}
	}
	return fields
}

// TreeTag resolves the type tag of a decoded JSON value.
func TreeTag(v any) core.FieldType {
	switch t := v.(type) {
	case nil:
		return core.TypeNull
	case bool:
		return core.TypeBoolean
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return core.TypeInteger
		}
		if f, err := t.Float64(); err == nil && !math.IsInf(f, 0) {
			return core.TypeFloat
		}
		return core.TypeString
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return core.TypeInteger
		}
		return core.TypeFloat
	case string:
		return classifyTemporal(t)
	case []any:
		return core.TypeArray
	case map[string]any:
		return core.TypeObject
	}
	return core.TypeString
}

// TreeSample converts json.Number into a native number for display.
func TreeSample(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
