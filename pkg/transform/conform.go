package transform

import (
	"github.com/saturnines/ants-tap/pkg/catalog"
)

// Conformer coerces records to their declared schema.
type Conformer struct {
	byType map[catalog.FieldType]Transformer
}

// NewConformer builds the scalar transformers from registry. A nil registry
// uses NewRegistry.
func NewConformer(registry *Registry) (*Conformer, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	names := map[catalog.FieldType]string{
		catalog.TypeInteger:  "int",
		catalog.TypeNumber:   "float",
		catalog.TypeBoolean:  "bool",
		catalog.TypeString:   "string",
		catalog.TypeDateTime: "date",
	}

	c := &Conformer{byType: make(map[catalog.FieldType]Transformer, len(names))}
	for ft, name := range names {
		t, err := registry.Create(name, nil)
		if err != nil {
			return nil, err
		}
		c.byType[ft] = t
	}
	return c, nil
}

// Conform returns a copy of record with declared scalar fields converted
// to their schema type. Undeclared fields pass through, nulls are kept and
// values that fail to convert keep their raw form.
func (c *Conformer) Conform(record map[string]interface{}, schema []catalog.Field) map[string]interface{} {
	if record == nil {
		return nil
	}
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		out[k] = v
	}
	for _, f := range schema {
		v, ok := out[f.Name]
		if !ok || v == nil {
			continue
		}
		out[f.Name] = c.value(v, f)
	}
	return out
}

func (c *Conformer) value(v interface{}, f catalog.Field) interface{} {
	if v == nil {
		return nil
	}
	switch f.Type {
	case catalog.TypeObject:
		m, ok := v.(map[string]interface{})
		if !ok || f.Open() {
			return v
		}
		return c.Conform(m, f.Fields)
	case catalog.TypeArray:
		arr, ok := v.([]interface{})
		if !ok || f.Items == nil {
			return v
		}
		conv := make([]interface{}, len(arr))
		for i, item := range arr {
			conv[i] = c.value(item, *f.Items)
		}
		return conv
	}

	t, ok := c.byType[f.Type]
	if !ok {
		return v
	}
	conv, err := t.Transform(v)
	if err != nil {
		return v
	}
	return conv
}
