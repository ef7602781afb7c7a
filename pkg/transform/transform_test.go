package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/ants-tap/pkg/catalog"
	"github.com/saturnines/ants-tap/pkg/transform"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]interface{}
		want  transform.FlatRecord
	}{
		{
			name:  "nested objects",
			input: map[string]interface{}{"a": map[string]interface{}{"b": 1, "c": map[string]interface{}{"d": 2}}},
			want:  transform.FlatRecord{"a.b": 1, "a.c.d": 2},
		},
		{
			name:  "empty",
			input: map[string]interface{}{},
			want:  transform.FlatRecord{},
		},
		{
			name:  "nil",
			input: nil,
			want:  transform.FlatRecord{},
		},
		{
			name: "arrays and nulls kept",
			input: map[string]interface{}{
				"id":    float64(1),
				"tags":  []interface{}{"x", map[string]interface{}{"y": 1}},
				"links": nil,
			},
			want: transform.FlatRecord{
				"id":    float64(1),
				"tags":  []interface{}{"x", map[string]interface{}{"y": 1}},
				"links": nil,
			},
		},
		{
			name:  "empty nested object",
			input: map[string]interface{}{"meta": map[string]interface{}{}, "a": 1},
			want:  transform.FlatRecord{"a": 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transform.Flatten(tt.input))
		})
	}
}

func TestFlattenValue(t *testing.T) {
	assert.Equal(t, "x", transform.FlattenValue("x"))
	assert.Equal(t, []interface{}{1}, transform.FlattenValue([]interface{}{1}))
	assert.Nil(t, transform.FlattenValue(nil))
	assert.Equal(t, transform.FlatRecord{"a.b": 1},
		transform.FlattenValue(map[string]interface{}{"a": map[string]interface{}{"b": 1}}))
}

func TestScalarTransforms(t *testing.T) {
	registry := transform.NewRegistry()

	tests := []struct {
		kind    string
		input   interface{}
		want    interface{}
		wantErr bool
	}{
		{"string", nil, "", false},
		{"string", float64(42), "42", false},
		{"string", 3.5, "3.5", false},
		{"string", true, "true", false},
		{"string", map[string]interface{}{}, nil, true},
		{"int", float64(42), 42, false},
		{"int", 3.14, 0, true},
		{"int", " 123", 123, false},
		{"int", "abc", 0, true},
		{"float", "2.5", 2.5, false},
		{"float", 7, 7.0, false},
		{"bool", "true", true, false},
		{"bool", float64(0), false, false},
		{"bool", []interface{}{}, false, true},
		{"date", "2023-04-05T06:07:08Z", "2023-04-05T06:07:08Z", false},
		{"date", "2024-03-05T10:11:12.345+01:00", "2024-03-05T10:11:12.345+01:00", false},
		{"date", "2024-03-05T10:11:12.000+01:00", "2024-03-05T10:11:12.000+01:00", false},
		{"date", "2023-04-05 06:07:08", "2023-04-05T06:07:08Z", false},
		{"date", "2023-04-05", "2023-04-05T00:00:00Z", false},
		{"date", "yesterday", nil, true},
		{"date", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			tr, err := registry.Create(tt.kind, nil)
			require.NoError(t, err)
			got, err := tr.Transform(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateTransformFormats(t *testing.T) {
	registry := transform.NewRegistry()
	tr, err := registry.Create("date", map[string]interface{}{"input_format": "02/01/2006", "output_format": "Date"})
	require.NoError(t, err)

	got, err := tr.Transform("05/04/2023")
	require.NoError(t, err)
	assert.Equal(t, "2023-04-05", got)

	got, err = tr.Transform(float64(0))
	require.NoError(t, err)
	assert.Equal(t, "1970-01-01", got)
}

func TestRegistryUnknown(t *testing.T) {
	_, err := transform.NewRegistry().Create("upper", nil)
	assert.Error(t, err)
}

func TestConform(t *testing.T) {
	c, err := transform.NewConformer(nil)
	require.NoError(t, err)

	schema := catalog.MustDescribe(catalog.Products).Schema
	record := map[string]interface{}{
		"id":   float64(12),
		"type": "products",
		"attributes": map[string]interface{}{
			"length":          "30",
			"hasBarcode":      float64(1),
			"countryOfOrigin": nil,
			"width":           "wide",
			"hsCodes": []interface{}{
				map[string]interface{}{"country": "NL", "hsCode": float64(1234)},
			},
			"metadata": map[string]interface{}{"k": float64(1)},
			"extra":    "kept",
		},
		"unknown": float64(1.5),
	}

	got := c.Conform(record, schema)
	attrs := got["attributes"].(map[string]interface{})

	assert.Equal(t, 12, got["id"])
	assert.Equal(t, 30, attrs["length"])
	assert.Equal(t, true, attrs["hasBarcode"])
	assert.Nil(t, attrs["countryOfOrigin"])
	assert.Equal(t, "wide", attrs["width"], "failed conversion keeps the raw value")
	assert.Equal(t, "1234", attrs["hsCodes"].([]interface{})[0].(map[string]interface{})["hsCode"])
	assert.Equal(t, map[string]interface{}{"k": float64(1)}, attrs["metadata"])
	assert.Equal(t, "kept", attrs["extra"])
	assert.Equal(t, float64(1.5), got["unknown"])

	// the input is left untouched
	assert.Equal(t, float64(12), record["id"])
	assert.Nil(t, c.Conform(nil, schema))
}

func TestConform_KeepsTimestampPrecision(t *testing.T) {
	c, err := transform.NewConformer(nil)
	require.NoError(t, err)

	record := map[string]interface{}{
		"id": float64(7),
		"attributes": map[string]interface{}{
			"orderedOn":             "2024-03-05T10:11:12.345+01:00",
			"preferredShippingDate": "2024-03-06 08:00:00.250",
		},
	}
	got := c.Conform(record, catalog.MustDescribe(catalog.Orders).Schema)
	attrs := got["attributes"].(map[string]interface{})

	assert.Equal(t, "2024-03-05T10:11:12.345+01:00", attrs["orderedOn"])
	assert.Equal(t, "2024-03-06T08:00:00.25Z", attrs["preferredShippingDate"])
}
