package catalog

import "strings"

// FieldType is the declared JSON type of a field.
type FieldType string

const (
	TypeInteger  FieldType = "integer"
	TypeNumber   FieldType = "number"
	TypeString   FieldType = "string"
	TypeBoolean  FieldType = "boolean"
	TypeDateTime FieldType = "date-time"
	TypeObject   FieldType = "object"
	TypeArray    FieldType = "array"
)

// Field declares one property of a record. Object fields list their
// children in Fields; an object with no children is open (untyped).
// Array fields describe their elements in Items.
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool
	Fields   []Field
	Items    *Field
}

func prop(name string, t FieldType) Field { return Field{Name: name, Type: t} }

func nullable(f Field) Field {
	f.Nullable = true
	return f
}

func object(name string, fields ...Field) Field {
	return Field{Name: name, Type: TypeObject, Fields: fields}
}

func array(name string, items Field) Field {
	return Field{Name: name, Type: TypeArray, Items: &items}
}

// Open reports whether an object field has no declared children.
func (f Field) Open() bool { return f.Type == TypeObject && len(f.Fields) == 0 }

var productSchema = []Field{
	prop("id", TypeInteger),
	prop("type", TypeString),
	object("attributes",
		prop("sku", TypeString),
		prop("status", TypeString),
		prop("stockLevelType", TypeString),
		prop("type", TypeString),
		prop("length", TypeInteger),
		prop("width", TypeInteger),
		prop("height", TypeInteger),
		prop("name", TypeString),
		prop("hasBarcode", TypeBoolean),
		prop("barcode", TypeString),
		prop("hasLotNumber", TypeBoolean),
		prop("hasSerialNumber", TypeBoolean),
		prop("hasExpirationDate", TypeBoolean),
		prop("expirationDateMargin", TypeInteger),
		prop("expirationDateWarning", TypeInteger),
		nullable(prop("countryOfOrigin", TypeString)),
		array("hsCodes", object("",
			prop("country", TypeString),
			prop("hsCode", TypeString),
		)),
		nullable(prop("description", TypeString)),
		nullable(object("metadata")),
	),
	nullable(object("relationships")),
	nullable(object("links")),
}

var orderSchema = []Field{
	prop("id", TypeInteger),
	prop("type", TypeString),
	object("attributes",
		prop("externalOrderNumber", TypeString),
		prop("reference", TypeString),
		prop("orderedOn", TypeDateTime),
		prop("currency", TypeString),
		prop("email", TypeString),
		prop("preferredShippingDate", TypeDateTime),
		prop("allowPartialDelivery", TypeBoolean),
		prop("onHold", TypeBoolean),
	),
	nullable(object("relationships")),
	nullable(array("included", object(""))),
	nullable(object("links")),
}

var lineAttributes = object("attributes",
	prop("sku", TypeString),
	prop("quantity", TypeInteger),
	prop("price", TypeNumber),
	prop("vat", TypeNumber),
	prop("name", TypeString),
)

var orderDetailSchema = []Field{
	prop("id", TypeInteger),
	prop("type", TypeString),
	lineAttributes,
	object("relationships"),
	array("included", object("")),
	object("links"),
}

var orderItemSchema = []Field{
	prop("id", TypeInteger),
	prop("type", TypeString),
	lineAttributes,
	object("relationships",
		object("order",
			object("data",
				prop("id", TypeInteger),
				prop("type", TypeString),
				object("links",
					prop("self", TypeString),
				),
			),
		),
	),
	object("links"),
}

// Columns returns the dotted leaf paths of the schema in declaration order.
// Open objects and arrays are leaves: they are not expanded into columns.
func (d Descriptor) Columns() []string {
	var cols []string
	var walk func(prefix string, fields []Field)
	walk = func(prefix string, fields []Field) {
		for _, f := range fields {
			path := f.Name
			if prefix != "" {
				path = prefix + "." + f.Name
			}
			if f.Type == TypeObject && !f.Open() {
				walk(path, f.Fields)
				continue
			}
			cols = append(cols, path)
		}
	}
	walk("", d.Schema)
	return cols
}

// Lookup finds the declared field at a dotted path.
func (d Descriptor) Lookup(path string) (Field, bool) {
	fields := d.Schema
	var found Field
	for _, part := range strings.Split(path, ".") {
		ok := false
		for _, f := range fields {
			if f.Name == part {
				found, fields, ok = f, f.Fields, true
				break
			}
		}
		if !ok {
			return Field{}, false
		}
	}
	return found, true
}

// JSONSchema renders the schema as a JSON-schema document.
func (d Descriptor) JSONSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": properties(d.Schema),
	}
}

func properties(fields []Field) map[string]interface{} {
	props := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
	}
	return props
}

func fieldSchema(f Field) map[string]interface{} {
	var s map[string]interface{}
	switch f.Type {
	case TypeDateTime:
		s = map[string]interface{}{"type": jsonType("string", f.Nullable), "format": "date-time"}
	case TypeObject:
		s = map[string]interface{}{"type": jsonType("object", f.Nullable)}
		if !f.Open() {
			s["properties"] = properties(f.Fields)
		}
	case TypeArray:
		s = map[string]interface{}{"type": jsonType("array", f.Nullable)}
		if f.Items != nil {
			s["items"] = fieldSchema(*f.Items)
		}
	default:
		s = map[string]interface{}{"type": jsonType(string(f.Type), f.Nullable)}
	}
	return s
}

func jsonType(t string, nullable bool) interface{} {
	if nullable {
		return []string{t, "null"}
	}
	return t
}
